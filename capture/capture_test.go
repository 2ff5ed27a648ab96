package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestRunCollectsChunks(t *testing.T) {
	d := DelegateFunc(func(ctx context.Context, query string, out io.Writer) error {
		for _, chunk := range []string{"Rest, ", "fluids ", "and " + query} {
			if _, err := io.WriteString(out, chunk); err != nil {
				return err
			}
		}
		return nil
	})

	out, err := Run(context.Background(), d, "paracetamol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Rest, fluids and paracetamol" {
		t.Errorf("out = %q", out)
	}
}

func TestRunClosesRecorderOnError(t *testing.T) {
	boom := errors.New("model unavailable")
	rec := &Recorder{}
	var sawOpen bool
	d := DelegateFunc(func(ctx context.Context, query string, out io.Writer) error {
		sawOpen = rec.Capturing()
		fmt.Fprint(out, "partial")
		return boom
	})

	out, err := rec.Run(context.Background(), d, "q")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if !sawOpen {
		t.Error("recorder was not capturing during the call")
	}
	if rec.Capturing() {
		t.Error("recorder still capturing after a failed call")
	}
	if out != "partial" {
		t.Errorf("out = %q, want partial output", out)
	}
	if _, werr := rec.Write([]byte("late")); !errors.Is(werr, ErrClosed) {
		t.Errorf("write after close: err = %v, want ErrClosed", werr)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	rec := &Recorder{}
	d := DelegateFunc(func(ctx context.Context, query string, out io.Writer) error {
		fmt.Fprint(out, "before")
		panic("tool crashed")
	})

	out, err := rec.Run(context.Background(), d, "q")
	if err == nil {
		t.Fatal("expected an error from a panicking delegate")
	}
	if rec.Capturing() {
		t.Error("recorder still capturing after a panic")
	}
	if out != "before" {
		t.Errorf("out = %q, want %q", out, "before")
	}
}

func TestRecorderReuse(t *testing.T) {
	rec := &Recorder{}
	first := DelegateFunc(func(ctx context.Context, query string, out io.Writer) error {
		_, err := io.WriteString(out, "one")
		return err
	})
	second := DelegateFunc(func(ctx context.Context, query string, out io.Writer) error {
		_, err := io.WriteString(out, "two")
		return err
	})

	if _, err := rec.Run(context.Background(), first, "q"); err != nil {
		t.Fatal(err)
	}
	out, err := rec.Run(context.Background(), second, "q")
	if err != nil {
		t.Fatal(err)
	}
	if out != "two" {
		t.Errorf("out = %q, want output of the second call only", out)
	}
}
