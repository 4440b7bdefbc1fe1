package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type membership struct {
	Level   int       `json:"persistenceLevel"`
	Members []int     `json:"crystalMembership"`
	Ratio   []float64 `json:"ratio,omitempty"`
}

func TestCodecs_Agree(t *testing.T) {
	in := membership{Level: 3, Members: []int{0, 1, 1}, Ratio: []float64{0.75, 0.25}}

	for _, c := range []Codec{GoJSON{}, StdJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Marshal(in)
			require.NoError(t, err)
			assert.JSONEq(t, `{"persistenceLevel":3,"crystalMembership":[0,1,1],"ratio":[0.75,0.25]}`, string(b))

			var out membership
			require.NoError(t, c.Unmarshal(b, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestDocument(t *testing.T) {
	in := membership{Level: 1, Members: []int{0}}

	got, err := Document(nil, in)
	require.NoError(t, err)
	want, err := Document(StdJSON{}, in)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
	assert.Equal(t, "{\n  \"persistenceLevel\": 1,\n  \"crystalMembership\": [\n    0\n  ]\n}\n", string(got))

	_, err = Document(StdJSON{}, make(chan int))
	assert.Error(t, err)
}
