package sweep

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name    string
		in      Criteria
		want    string
		wantErr error
	}{
		{
			name: "search only",
			in:   Criteria{Search: "newsletter"},
			want: `"newsletter"`,
		},
		{
			name: "search with whitelist",
			in:   Criteria{Search: "newsletter", Phrases: []string{"keep this", "  ", "invoice"}},
			want: `"newsletter" -"keep this" -"invoice"`,
		},
		{
			name: "embedded quotes dropped",
			in:   Criteria{Search: `say "hi"`, Phrases: []string{`"vip"`}},
			want: `"say hi" -"vip"`,
		},
		{
			name: "raw search",
			in:   Criteria{Search: "from:shop@example.com older_than:1y", Raw: true},
			want: `from:shop@example.com older_than:1y`,
		},
		{
			name: "label with empty search",
			in:   Criteria{Label: "to delete", Phrases: []string{"keep"}},
			want: `label:"to delete" -"keep"`,
		},
		{
			name:    "empty search and whitelist",
			in:      Criteria{},
			wantErr: ErrUnsafeQuery,
		},
		{
			name:    "empty search with whitelist",
			in:      Criteria{Search: "   ", Phrases: []string{"keep"}},
			wantErr: ErrUnsafeQuery,
		},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got, err := BuildQuery(tc.in)
			if tc.wantErr != nil {
				be.Err(t, err, tc.wantErr)
				return
			}
			be.Err(t, err, nil)
			be.Equal(t, got.Raw, tc.want)
		})
	}
}

func TestResolveAction(t *testing.T) {
	tests := []struct {
		name                        string
		permanently, archive, clean bool
		want                        Action
	}{
		{name: "default", want: ActionMoveToLabel},
		{name: "all set", permanently: true, archive: true, clean: true, want: ActionDelete},
		{name: "archive beats clean", archive: true, clean: true, want: ActionArchive},
		{name: "clean", clean: true, want: ActionClean},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			be.Equal(t, ResolveAction(tc.permanently, tc.archive, tc.clean), tc.want)
		})
	}
}
