package main

import (
	"context"
	"errors"

	"go.arsenm.dev/wscall/channel"
)

type userArg struct {
	Name    string `json:"name"`
	License string `json:"license"`
}

// registerDemo registers the demo paths on a new channel
func registerDemo(ch *channel.Channel) error {
	err := ch.RegisterFunc("/user", user)
	if err != nil {
		return err
	}

	err = ch.RegisterFunc("/echo", func(arg any) any {
		return arg
	})
	if err != nil {
		return err
	}

	return ch.RegisterFunc("/greet", greet)
}

func user(arg userArg) (string, error) {
	if arg.Name == "Fred" {
		return "I've seen Fred before, yes", nil
	}
	return "", channel.NewError("unknown_user", "I don't know what you're talking about")
}

// greet calls back into the peer to find out its name
func greet(ctx context.Context) (string, error) {
	ch, ok := channel.FromContext(ctx)
	if !ok {
		return "", errors.New("no channel in context")
	}

	var name string
	if err := ch.Call(ctx, "/name", nil, &name); err != nil {
		return "", err
	}
	return "Hello, " + name, nil
}
