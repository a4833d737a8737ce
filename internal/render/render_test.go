package render

import "testing"

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		context  map[string]string
		want     string
	}{
		{
			name:     "no placeholders",
			template: "<p>Hello there</p>",
			context:  map[string]string{"email": "a@x.com"},
			want:     "<p>Hello there</p>",
		},
		{
			name:     "single token",
			template: "Hello {{email}}",
			context:  map[string]string{"email": "a@x.com"},
			want:     "Hello a@x.com",
		},
		{
			name:     "repeated token",
			template: "{{email}} / {{email}}",
			context:  map[string]string{"email": "a@x.com"},
			want:     "a@x.com / a@x.com",
		},
		{
			name:     "whitespace inside braces",
			template: "Hello {{ email }}",
			context:  map[string]string{"email": "a@x.com"},
			want:     "Hello a@x.com",
		},
		{
			name:     "unknown token left as-is",
			template: "Hello {{name}}, via {{email}}",
			context:  map[string]string{"email": "a@x.com"},
			want:     "Hello {{name}}, via a@x.com",
		},
		{
			name:     "empty context",
			template: "Hello {{email}}",
			context:  nil,
			want:     "Hello {{email}}",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Render(tt.template, tt.context); got != tt.want {
				t.Fatalf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}
