package textgen

import "testing"

func TestTruncateAtStop(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		stop []string
		want string
	}{
		{
			name: "no stop sequences",
			text: "a complete answer",
			stop: nil,
			want: "a complete answer",
		},
		{
			name: "stop not present",
			text: "a complete answer",
			stop: []string{"Question:"},
			want: "a complete answer",
		},
		{
			name: "single stop",
			text: "the answer\n\nQuestion: next one",
			stop: []string{"\n\n"},
			want: "the answer",
		},
		{
			name: "earliest of several stops wins",
			text: "short answer Question: more\n\ntail",
			stop: []string{"\n\n", "Question:"},
			want: "short answer ",
		},
		{
			name: "empty stop sequence ignored",
			text: "answer",
			stop: []string{""},
			want: "answer",
		},
		{
			name: "stop at start yields empty",
			text: "Question: echoed",
			stop: []string{"Question:"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateAtStop(tt.text, tt.stop); got != tt.want {
				t.Errorf("TruncateAtStop() = %q, want %q", got, tt.want)
			}
		})
	}
}
