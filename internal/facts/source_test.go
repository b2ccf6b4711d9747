package facts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/recommendation-writer/internal/types"
)

func TestFileSource_Load(t *testing.T) {
	src := NewFileSource("testdata")

	raw, err := src.Load(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", raw.SubjectID)
	assert.Equal(t, "Acme Payments", raw.Profile.Company)
	require.Len(t, raw.Repositories, 2)
	require.NotNil(t, raw.Repositories[0].Contribution)
	assert.Equal(t, 64, raw.Repositories[0].Contribution.PullRequests)
	assert.Equal(t, []string{"API design", "Code review"}, raw.Skills)
}

func TestFileSource_NotFound(t *testing.T) {
	_, err := NewFileSource("testdata").Load(t.Context(), "nobody")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "nobody", nf.SubjectID)
}

func TestFileSource_RejectsUnsafeSubject(t *testing.T) {
	src := NewFileSource("testdata")
	for _, id := range []string{"", "../etc/passwd", "a/b", ".."} {
		_, err := src.Load(t.Context(), id)
		require.Error(t, err, id)
	}
}

func TestFileSource_SubjectMismatch(t *testing.T) {
	_, err := NewFileSource("testdata").Load(t.Context(), "mismatch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "someone-else")
}

func TestFileSource_SchemaViolation(t *testing.T) {
	_, err := NewFileSource("testdata").Load(t.Context(), "broken")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.GreaterOrEqual(t, len(ve.Errors), 2)
}

func TestFileSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := NewFileSource("testdata").Load(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "minimal", input: `{"subject_id": "bob"}`},
		{name: "missing subject", input: `{"profile": {}}`, wantErr: true},
		{name: "negative followers", input: `{"subject_id": "bob", "profile": {"followers": -1}}`, wantErr: true},
		{name: "repository without name", input: `{"subject_id": "bob", "repositories": [{}]}`, wantErr: true},
		{name: "not json", input: `subject_id: bob`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Decode([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "bob", raw.SubjectID)
		})
	}
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource(&types.RawFacts{SubjectID: "alice"})

	raw, err := src.Load(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", raw.SubjectID)

	_, err = src.Load(t.Context(), "bob")
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))

	src.Put(&types.RawFacts{SubjectID: "bob"})
	_, err = src.Load(t.Context(), "bob")
	assert.NoError(t, err)
}
