package rpc

import (
	"encoding/gob"
	"testing"
)

type echoArgs struct {
	Text string
}

type echoResult struct {
	Text string
}

func init() {
	gob.Register(echoArgs{})
	gob.Register(echoResult{})
}

func TestInvokeRoundTrip(t *testing.T) {
	skel := NewSkeleton("", map[string]Handler{
		"Echo.Say": func(args interface{}) (interface{}, error) {
			a := args.(echoArgs)
			return echoResult{Text: a.Text}, nil
		},
	})
	if err := skel.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer skel.Stop()

	v, err := Invoke(skel.Addr(), "Echo.Say", echoArgs{Text: "hi"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := v.(echoResult).Text; got != "hi" {
		t.Fatalf("Text = %v, want hi", got)
	}
}

func TestInvokeUnknownMethod(t *testing.T) {
	skel := NewSkeleton("", map[string]Handler{})
	if err := skel.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer skel.Stop()

	_, err := Invoke(skel.Addr(), "Nonexistent.Method", echoArgs{})
	if !Is(err, IllegalArgument) {
		t.Fatalf("err = %v, want IllegalArgument", err)
	}
}

func TestInvokeHandlerError(t *testing.T) {
	skel := NewSkeleton("", map[string]Handler{
		"Echo.Fail": func(args interface{}) (interface{}, error) {
			return nil, Newf(FileNotFound, "nope")
		},
	})
	if err := skel.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer skel.Stop()

	_, err := Invoke(skel.Addr(), "Echo.Fail", echoArgs{})
	if !Is(err, FileNotFound) {
		t.Fatalf("err = %v, want FileNotFound", err)
	}
}

func TestStartTwiceFails(t *testing.T) {
	skel := NewSkeleton("", map[string]Handler{})
	if err := skel.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer skel.Stop()

	if err := skel.Start(); !Is(err, IllegalState) {
		t.Fatalf("second Start err = %v, want IllegalState", err)
	}
}
