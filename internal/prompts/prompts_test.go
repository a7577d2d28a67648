package prompts

import (
	"strings"
	"testing"
)

func TestSantaAgeBands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		age  int
		want string
	}{
		{name: "toddler", age: 4, want: "very simple"},
		{name: "young band upper bound", age: 6, want: "very simple"},
		{name: "middle band", age: 8, want: "playful"},
		{name: "middle band upper bound", age: 10, want: "playful"},
		{name: "older child", age: 13, want: "wise"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Santa("Emma", tt.age)
			if !strings.Contains(got, tt.want) {
				t.Errorf("Santa(Emma, %d) = %q, want it to contain %q", tt.age, got, tt.want)
			}
			if !strings.Contains(got, "Emma") {
				t.Errorf("prompt does not mention the child's name: %q", got)
			}
			if !strings.Contains(got, "Never break character") {
				t.Errorf("prompt lost the character guard: %q", got)
			}
		})
	}
}

func TestGreeting(t *testing.T) {
	t.Parallel()

	if got := Greeting("Kee-rah"); !strings.Contains(got, "Hello Kee-rah!") {
		t.Errorf("Greeting = %q", got)
	}
	if got := Greeting(""); !strings.Contains(got, "Hello there!") {
		t.Errorf("generic greeting = %q", got)
	}
}
