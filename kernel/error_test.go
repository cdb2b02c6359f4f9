package kernel

import "testing"

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "foo",
		Message: "error message",
	}

	if err.Error() != err.Message {
		t.Fatalf("expected to err.Error() to return %q; got %q", err.Message, err.Error())
	}
}

func TestFatal(t *testing.T) {
	expErr := &Error{Module: "test", Message: "out of frames"}

	defer func() {
		got, ok := AsError(recover())
		if !ok {
			t.Fatal("expected Fatal to panic with a *kernel.Error")
		}

		if got != expErr {
			t.Fatalf("expected to recover %v; got %v", expErr, got)
		}
	}()

	Fatal(expErr)
	t.Fatal("expected Fatal not to return")
}

func TestAsError(t *testing.T) {
	specs := []struct {
		input interface{}
		expOK bool
	}{
		{nil, false},
		{"string panic", false},
		{(*Error)(nil), false},
		{&Error{Module: "test"}, true},
	}

	for specIndex, spec := range specs {
		if _, ok := AsError(spec.input); ok != spec.expOK {
			t.Errorf("[spec %d] expected AsError to return %t; got %t", specIndex, spec.expOK, ok)
		}
	}
}
