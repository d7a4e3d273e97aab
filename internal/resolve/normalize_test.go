package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeName(""))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme, Inc.", "acme"},
		{"ACME Incorporated", "acme"},
		{"Acme Corp.", "acme"},
		{"Acme L.L.C.", "acme"},
		{"Revolut Ltd", "revolut"},
		{"Revolut Limited", "revolut"},
		{"Société Générale S.A.", "societe generale"},
		{"Zalando SE", "zalando"},
		{"Foo GmbH & Co. KG", "foo"},
		{"Huawei Technologies Co., Ltd.", "huawei technologies"},
		{"Procter & Gamble", "procter and gamble"},
		{"O'Reilly Media", "oreilly media"},
		{"  Mistral   A.I. ", "mistral ai"},
		{"Ltd", "ltd"},
		{"Crème Brûlée SAS", "creme brulee"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeName_Idempotent(t *testing.T) {
	for _, s := range []string{"Acme, Inc.", "Société Générale S.A.", "Foo GmbH & Co. KG"} {
		once := NormalizeName(s)
		assert.Equal(t, once, NormalizeName(once), s)
	}
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "sao paulo, brazil", NormalizeText("  São   Paulo, Brazil "))
	assert.Equal(t, "", NormalizeText(""))
}

func TestTokenSort(t *testing.T) {
	assert.Equal(t, "bank first national", TokenSort("first national bank"))
	assert.Equal(t, "", TokenSort(""))
}
