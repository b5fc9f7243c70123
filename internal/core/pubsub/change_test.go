package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeEvent_RoundTrip(t *testing.T) {
	in := ChangeEvent{Collection: "gallery", ID: "a1", Type: ChangeCreate, Timestamp: 42}
	data, err := in.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalChangeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshalChangeEvent_Invalid(t *testing.T) {
	_, err := UnmarshalChangeEvent([]byte("{"))
	assert.Error(t, err)

	_, err = UnmarshalChangeEvent([]byte(`{"id":"x"}`))
	assert.ErrorContains(t, err, "missing collection")
}

func TestChangeSubject(t *testing.T) {
	s, err := ChangeSubject("ATELIER.changes", "gallery")
	require.NoError(t, err)
	assert.Equal(t, "ATELIER.changes.gallery", s)

	s, err = ChangeSubject("", "gallery")
	require.NoError(t, err)
	assert.Equal(t, "gallery", s)

	for _, bad := range []string{"", "a.b", "a*", "a>", "a b"} {
		_, err := ChangeSubject("ATELIER.changes", bad)
		assert.Error(t, err, bad)
	}
}

func TestCollectionFromSubject(t *testing.T) {
	tests := []struct {
		prefix  string
		subject string
		want    string
		ok      bool
	}{
		{"ATELIER.changes", "ATELIER.changes.gallery", "gallery", true},
		{"ATELIER.changes", "ATELIER.changes.a.b", "", false},
		{"ATELIER.changes", "ATELIER.changes", "", false},
		{"ATELIER.changes", "OTHER.changes.gallery", "", false},
		{"", "gallery", "gallery", true},
		{"", "a.b", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			got, ok := CollectionFromSubject(tt.prefix, tt.subject)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFollows(t *testing.T) {
	assert.True(t, Follows(nil, "gallery"))
	assert.True(t, Follows([]string{"events", "gallery"}, "gallery"))
	assert.False(t, Follows([]string{"events"}, "gallery"))
}

func TestParseStorageType(t *testing.T) {
	assert.Equal(t, FileStorage, ParseStorageType("file"))
	assert.Equal(t, MemoryStorage, ParseStorageType("memory"))
	assert.Equal(t, MemoryStorage, ParseStorageType(""))
	assert.Equal(t, 100, DefaultConsumerOptions().ChannelBufSize)
}
