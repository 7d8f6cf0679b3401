//go:build fuzz

package credentialhandler_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chinmina/chinmina-git-credential/internal/credentialhandler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct{ key, value string }

func pairs(m *credentialhandler.ArrayMap) []pair {
	var out []pair
	for it := m.Iter(); it.HasNext(); {
		k, v := it.Next()
		out = append(out, pair{k, v})
	}
	return out
}

func FuzzRequestRoundTrip(f *testing.F) {
	for _, seed := range []string{
		"protocol=https\nhost=dev.azure.com\npath=org/_git/repo\n\n",
		"protocol=https\nhost=dev.azure.com:8443\n",
		"url=https://dev.azure.com/org\n",
		"capability[]=authtype\ncapability[]=state\n",
		"wwwauth[]=Bearer realm=\"x\"\nwwwauth[]=Basic\n",
		"key=val=ue\n",
		"=value\n",
		"no-delimiter\n",
		"key\x00=value\n",
		"password=p\x00ss\n",
		"",
		"\n\n",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		props, err := credentialhandler.ReadProperties(strings.NewReader(input))
		if err != nil {
			return
		}
		require.NotNil(t, props)

		for _, p := range pairs(props) {
			assert.NotEmpty(t, p.key)
		}

		// deriving a target must never panic, whatever the attributes
		if tgt, err := credentialhandler.TargetFromProperties(props); err == nil {
			assert.NoError(t, tgt.Validate())
		}

		var buf bytes.Buffer
		if err := credentialhandler.WriteProperties(props, &buf); err != nil {
			return
		}

		reparsed, err := credentialhandler.ReadProperties(&buf)
		require.NoError(t, err)
		assert.Equal(t, pairs(props), pairs(reparsed))
	})
}
