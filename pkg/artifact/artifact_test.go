package artifact

import "testing"

func TestKeyNaming(t *testing.T) {
	testCases := []struct {
		name     string
		key      Key
		file     string
		metadata string
		folder   string
	}{
		{
			name:     "ngram word",
			key:      Key{Kind: KindNGram, Lang: "en", Order: 3, Variant: VariantWord},
			file:     "en_3gram_word.json",
			metadata: "en_3gram_word_metadata.json",
			folder:   "word_ngram",
		},
		{
			name:     "markov subword",
			key:      Key{Kind: KindMarkov, Lang: "ary", Order: 2, Variant: VariantSubword},
			file:     "ary_markov_ctx2_subword.json",
			metadata: "ary_markov_ctx2_subword_metadata.json",
			folder:   "subword_markov",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.key.Filename(); got != tc.file {
				t.Errorf("Filename() = %q, want %q", got, tc.file)
			}
			if got := tc.key.MetadataFilename(); got != tc.metadata {
				t.Errorf("MetadataFilename() = %q, want %q", got, tc.metadata)
			}
			if got := tc.key.Folder(); got != tc.folder {
				t.Errorf("Folder() = %q, want %q", got, tc.folder)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	k := Key{Kind: KindNGram, Lang: "fr", Order: 2}.Normalize()
	if k.Date != DefaultDate || k.Variant != VariantWord {
		t.Errorf("Normalize() = %+v, want date %q and variant %q", k, DefaultDate, VariantWord)
	}
	k = Key{Kind: KindNGram, Lang: "fr", Order: 2, Date: "20251201", Variant: VariantSubword}.Normalize()
	if k.Date != "20251201" || k.Variant != VariantSubword {
		t.Errorf("Normalize() overwrote explicit fields: %+v", k)
	}
}

func TestParseKind(t *testing.T) {
	if _, err := ParseKind("ngram"); err != nil {
		t.Errorf("ParseKind(ngram) error = %v", err)
	}
	if _, err := ParseKind("markov"); err != nil {
		t.Errorf("ParseKind(markov) error = %v", err)
	}
	if _, err := ParseKind("embedding"); err == nil {
		t.Error("ParseKind(embedding) expected an error")
	}
}
