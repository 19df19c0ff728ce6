package documents

import "testing"

func TestSanitizeHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"script and handlers", `<p onclick="x()">a</p><script>alert(1)</script>`, `<p>a</p>`},
		{"iframe srcdoc", `<iframe srcdoc="<script>alert(1)</script>"></iframe><p>x</p>`, `<p>x</p>`},
		{"srcdoc on any element", `<div srcdoc="x">a</div>`, `<div>a</div>`},
		{"nested embeds", `<p><object data="x.swf"></object><embed src="x.swf"/>ok</p>`, `<p>ok</p>`},
		{"base element", `<base href="http://otro.test/"/><p>a</p>`, `<p>a</p>`},
		{"data link", `<a href="data:text/html;base64,PHNjcmlwdD4=">l</a>`, `<a>l</a>`},
		{"data form action", `<form action="data:text/html,x"><button formaction="javascript:x">b</button></form>`, `<form><button>b</button></form>`},
		{"inline image kept", `<img src="data:image/png;base64,AAAA"/>`, `<img src="data:image/png;base64,AAAA"/>`},
		{"svg image dropped", `<img src="data:image/svg+xml;base64,AAAA"/>`, `<img/>`},
		{"split scheme", `<a href=" java&#09;script:alert(1)">l</a>`, `<a>l</a>`},
		{"vbscript", `<a href="VBScript:msgbox(1)">l</a>`, `<a>l</a>`},
		{"poster", `<video poster="javascript:x"></video>`, `<video></video>`},
		{"plain link kept", `<a href="https://example.com/a">l</a>`, `<a href="https://example.com/a">l</a>`},
		{
			"full document",
			`<html><head><base href="x"></head><body><iframe src="x"></iframe><p>a</p></body></html>`,
			`<html><head></head><body><p>a</p></body></html>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeHTML(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Fatalf("SanitizeHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
