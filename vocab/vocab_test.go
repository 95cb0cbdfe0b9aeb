package vocab

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCorpus = `{
	"v_a": {"sentences": ["A dog runs.", "The dog jumps"]},
	"v_b": {"sentences": ["a cat runs"]}
}`

func writeCorpus(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "train.json")
	require.NoError(t, os.WriteFile(path, []byte(testCorpus), 0644))
	return path
}

func TestAddCorpusWords(t *testing.T) {
	v := New(true, 1)
	require.NoError(t, v.AddCorpus(writeCorpus(t)))

	require.Equal(t, PadID, v.ID(PadToken))
	require.Equal(t, StartID, v.ID(StartToken))
	require.Equal(t, EndID, v.ID(EndToken))
	require.Equal(t, UnknownID, v.ID(UnknownToken))

	// "a", "dog" and "runs" occur twice; ties are lexical.
	require.Equal(t, "a", v.Token(4))
	require.Equal(t, "dog", v.Token(5))
	require.Equal(t, "runs", v.Token(6))
	require.Equal(t, 4+6, v.Len())
}

func TestAddCorpusMinFreq(t *testing.T) {
	v := New(true, 2)
	require.NoError(t, v.AddCorpus(writeCorpus(t)))
	require.Equal(t, 4+3, v.Len())
	require.Equal(t, UnknownID, v.ID("cat"))
}

func TestAddCorpusChars(t *testing.T) {
	v := New(false, 1)
	require.NoError(t, v.AddCorpus(writeCorpus(t)))
	require.NotEqual(t, UnknownID, v.ID(" "))
	require.NotEqual(t, UnknownID, v.ID("d"))
	require.Equal(t, "dog", v.Decode(v.Encode("Dog")))
}

func TestEncodeDecode(t *testing.T) {
	v := New(true, 1)
	require.NoError(t, v.AddCorpus(writeCorpus(t)))

	ids := v.Encode("a dog flies")
	require.Len(t, ids, 5)
	require.Equal(t, StartID, ids[0])
	require.Equal(t, EndID, ids[4])
	require.Equal(t, UnknownID, ids[3])
	require.Equal(t, "a dog <unk>", v.Decode(ids))

	require.Equal(t, "a", v.Decode([]int{StartID, v.ID("a"), EndID, v.ID("dog")}))
}

func TestSaveLoad(t *testing.T) {
	v := New(true, 1)
	require.NoError(t, v.AddCorpus(writeCorpus(t)))

	path := filepath.Join(t.TempDir(), "vocab.json")
	require.NoError(t, v.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, v.Len(), loaded.Len())
	require.Equal(t, v.TokenLevel, loaded.TokenLevel)
	for id := 0; id < v.Len(); id++ {
		tok := v.Token(id)
		require.Equal(t, tok, loaded.Token(id))
		require.Equal(t, id, loaded.ID(tok))
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadOrBuild(t *testing.T) {
	corpus := writeCorpus(t)
	path := filepath.Join(t.TempDir(), "vocab.json")

	v, built, err := LoadOrBuild(path, corpus, true, 1)
	require.NoError(t, err)
	require.True(t, built)

	v2, built, err := LoadOrBuild(path, corpus, true, 1)
	require.NoError(t, err)
	require.False(t, built)
	require.Equal(t, v.Len(), v2.Len())
}
