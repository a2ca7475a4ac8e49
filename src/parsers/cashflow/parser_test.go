package cashflow

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDecimalString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1.234.567,89", "1234567.89"},
		{"1,234,567.89", "1234567.89"},
		{"1234567,89", "1234567.89"},
		{"1234567.89", "1234567.89"},
		{"1.000.000", "1000000"},
		{"₺ 250.000,50", "250000.50"},
		{`"42"`, "42"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeDecimalString(tt.in), tt.in)
	}
}

func TestParse_CommaSeparated(t *testing.T) {
	input := "kaynak_kurulus,fon_no,ihrac_no,vdmk_isin_kodu,banka_adi,baslangic_tarihi,donus_tarihi,mevduat_tutari,faiz_orani,faiz_tutari,toplam_donus\n" +
		"FİBABANKA,F1,I1,TRFXXX,ABC BANK,2024-01-01,2024-07-01,1000000,0.45,223972.6,1223972.6\n" +
		"FİBABANKA,F1,,,XX ZBJ KATILIM,2024-01-15,2024-02-15,500000,,,500000\n"

	res, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Zero(t, res.Skipped)

	first := res.Records[0]
	assert.Equal(t, "FİBABANKA", first.SourceInstitution)
	assert.Equal(t, "I1", first.IssuanceNumber)
	assert.Equal(t, "TRFXXX", first.ISIN)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), first.ReturnDate)
	assert.True(t, first.ActualInterestAmount.Equal(decimal.RequireFromString("223972.6")))
	assert.True(t, first.ActualInterestRate.Equal(decimal.RequireFromString("0.45")))

	second := res.Records[1]
	assert.True(t, second.ActualInterestAmount.IsZero())
	assert.True(t, second.ActualInterestRate.IsZero())
	assert.Empty(t, second.IssuanceNumber)
}

func TestParse_SemicolonTurkishFormat(t *testing.T) {
	input := "\ufeffBanka_Adi;Kaynak_Kurulus;Baslangic_Tarihi;Donus_Tarihi;Mevduat_Tutari;Faiz_Orani;Toplam_Donus\n" +
		"DEF BANK;FİBABANKA;01.03.2024;01.04.2024;1.250.000,50;45;1.300.000,00\n" +
		"\n" +
		"DEF BANK;FİBABANKA;not a date;01.04.2024;10;;10\n"

	res, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Skipped)

	rec := res.Records[0]
	assert.Equal(t, "DEF BANK", rec.CounterpartyName)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rec.StartDate)
	assert.True(t, rec.PrincipalAmount.Equal(decimal.RequireFromString("1250000.50")))
	assert.True(t, rec.ActualInterestRate.Equal(decimal.RequireFromString("0.45")))
	assert.True(t, rec.TotalReturnAmount.Equal(decimal.RequireFromString("1300000")))
}

func TestParse_MissingColumn(t *testing.T) {
	_, err := NewParser().Parse(strings.NewReader("kaynak_kurulus,banka_adi\nX,Y\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = NewParser().Parse(strings.NewReader(""))
	assert.Error(t, err)
}
