package pathlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit_DropsEmptyEntries(t *testing.T) {
	list := Join([]string{"/a", "", "/b", "  "})
	assert.Equal(t, []string{"/a", "/b"}, Split(list))
	assert.Empty(t, Split(""))
}

func TestDedup_KeepsFirstOccurrenceAndOrder(t *testing.T) {
	in := []string{"/c", "/a", "/c", "/b", "/a", "/d"}
	assert.Equal(t, []string{"/c", "/a", "/b", "/d"}, Dedup(in))
}

func TestDedup_DoesNotModifyInput(t *testing.T) {
	in := []string{"/a", "/a"}
	_ = Dedup(in)
	assert.Equal(t, []string{"/a", "/a"}, in)
}

func TestFilter_BlockedSubstrings(t *testing.T) {
	in := []string{
		`C:\Program Files (x86)\Windows Kits\10\include\ucrt`,
		`C:\VS\2019\Community\VC\Tools\MSVC\14.29\include`,
		`C:\VS\14.0\VC\include`,
		`C:\deps\zlib\include`,
	}
	got := Filter(in, []string{"Windows Kits", "MSVC", "2019"})
	assert.Equal(t, []string{`C:\VS\14.0\VC\include`, `C:\deps\zlib\include`}, got)
}

func TestFilter_EmptyBlockEntryMatchesNothing(t *testing.T) {
	in := []string{"/a", "/b"}
	assert.Equal(t, in, Filter(in, []string{""}))
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		old  []string
		new  []string
		want []string
	}{
		{"empty old takes new", nil, []string{"/x"}, []string{"/x"}},
		{"empty new keeps old", []string{"/x"}, nil, []string{"/x"}},
		{"old first then new", []string{"/a", "/b"}, []string{"/c"}, []string{"/a", "/b", "/c"}},
		{"shared entries once", []string{"/a", "/b"}, []string{"/b", "/c", "/a"}, []string{"/a", "/b", "/c"}},
		{"identical lists", []string{"/a"}, []string{"/a"}, []string{"/a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(Merge(Join(tt.old), Join(tt.new)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMerge_NeverDropsOldEntries(t *testing.T) {
	old := []string{"/p", "/q", "/p"}
	merged := Split(Merge(Join(old), Join([]string{"/r", "/q"})))
	for _, p := range old {
		assert.Contains(t, merged, p)
	}
	assert.Len(t, merged, 3)
}

func TestAppendUnique(t *testing.T) {
	s := AppendUnique(nil, "a")
	s = AppendUnique(s, "b")
	s = AppendUnique(s, "a")
	assert.Equal(t, []string{"a", "b"}, s)
}
