package cmd

import (
	"context"
	"testing"
)

type stubCommand struct {
	name    string
	aliases []string
	ran     *[]string
}

func (s *stubCommand) Name() string        { return s.name }
func (s *stubCommand) Description() string { return "stub" }
func (s *stubCommand) Aliases() []string   { return s.aliases }
func (s *stubCommand) Run(ctx context.Context, inv *Invocation) error {
	*s.ran = append(*s.ran, s.name+":"+inv.Arg(0))
	return nil
}

func tag(label string, ran *[]string) Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			*ran = append(*ran, label)
			return c.Run(ctx, inv)
		})
	}
}

func TestApplyOrderAndRoot(t *testing.T) {
	var ran []string
	inner := &stubCommand{name: "play", ran: &ran}
	c := Apply(inner, tag("inner", &ran), tag("outer", &ran))

	if err := c.Run(context.Background(), &Invocation{Args: []string{"song"}}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"outer", "inner", "play:song"}
	if len(ran) != len(want) {
		t.Fatalf("ran = %v, want %v", ran, want)
	}
	for i := range want {
		if ran[i] != want[i] {
			t.Errorf("ran[%d] = %q, want %q", i, ran[i], want[i])
		}
	}
	if Root(c) != inner {
		t.Error("Root() did not return the inner command")
	}
}

func TestRegistryAliases(t *testing.T) {
	var ran []string
	r := NewRegistry()
	r.Register(Apply(&stubCommand{name: "nowplaying", aliases: []string{"np"}, ran: &ran}, tag("log", &ran)))
	r.Register(&stubCommand{name: "join", ran: &ran})

	for _, name := range []string{"nowplaying", "NP", "join"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("Get(%q) not found", name)
		}
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) found a command")
	}

	all := r.GetAll()
	if len(all) != 2 || all[0].Name() != "join" {
		t.Errorf("GetAll() = %v, want [join nowplaying]", all)
	}
}

func TestInvocationArg(t *testing.T) {
	inv := &Invocation{Args: []string{"a"}}
	if inv.Arg(0) != "a" || inv.Arg(1) != "" || inv.Arg(-1) != "" {
		t.Errorf("Arg() returned unexpected values")
	}
	var nilInv *Invocation
	if nilInv.Arg(0) != "" {
		t.Error("nil Invocation Arg(0) != \"\"")
	}
}
