package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.arsenm.dev/wscall/channel"
	"go.arsenm.dev/wscall/client"
	"go.arsenm.dev/wscall/codec"

	"github.com/spf13/cobra"
)

var (
	callCodec   string
	callTimeout time.Duration
	callName    string
)

var callCmd = &cobra.Command{
	Use:   "call <url> <path> [json-arg]",
	Short: "Call a path on a server",
	Long: "Connect to a server, call a path with an optional JSON argument\n" +
		"and print the result as JSON",
	Args: cobra.RangeArgs(2, 3),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callCodec, "codec", "json", "frame codec (json or msgpack)")
	callCmd.Flags().DurationVarP(&callTimeout, "timeout", "t", 10*time.Second, "time to wait for the result")
	callCmd.Flags().StringVar(&callName, "name", "wscall", "name returned when the server calls /name")
}

func runCall(cmd *cobra.Command, args []string) error {
	cdc, err := codec.ByName(callCodec)
	if err != nil {
		return err
	}

	var arg any
	if len(args) == 3 {
		if err = json.Unmarshal([]byte(args[2]), &arg); err != nil {
			return fmt.Errorf("invalid argument: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	ch, err := client.Dial(ctx, args[0], func(ch *channel.Channel) error {
		// Servers may call back into the client
		return ch.RegisterFunc("/name", func() string {
			return callName
		})
	}, client.WithChannelOptions(channel.WithCodec(cdc)))
	if err != nil {
		return err
	}
	defer ch.Close()

	var res any
	err = ch.Call(ctx, args[1], arg, &res)
	var remoteErr *channel.RemoteError
	if errors.As(err, &remoteErr) {
		return fmt.Errorf("remote error (code %v): %s", remoteErr.Code, remoteErr.Message)
	} else if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
