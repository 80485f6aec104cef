package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"manifold/internal/domain"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestExtract_ExplicitEffectiveDate(t *testing.T) {
	e := New(90)
	res := e.Extract("Esta lei entra em vigor em 15/06/2023 e revoga disposições anteriores.", nil)
	require.NotNil(t, res.EffectiveDate)
	require.Equal(t, "2023-06-15", res.EffectiveDate.Format("2006-01-02"))
}

func TestExtract_PublicationReferentFallback(t *testing.T) {
	e := New(90)
	pub := date(t, "2024-03-10")
	res := e.Extract("Esta portaria entra em vigor na data de sua publicação.", &pub)
	require.NotNil(t, res.EffectiveDate)
	require.Equal(t, "2024-03-10", res.EffectiveDate.Format("2006-01-02"))
}

func TestExtract_DefaultDaysFallback(t *testing.T) {
	e := New(90)
	pub := date(t, "2024-01-01")
	res := e.Extract("Texto sem cláusula de vigência explícita.", &pub)
	require.NotNil(t, res.EffectiveDate)
	require.Equal(t, pub.AddDate(0, 0, 90).Format("2006-01-02"), res.EffectiveDate.Format("2006-01-02"))
}

func TestExtract_NoFallbackWithoutPublicationDate(t *testing.T) {
	e := New(90)
	res := e.Extract("Texto sem cláusula de vigência explícita.", nil)
	require.Nil(t, res.EffectiveDate)
	require.NotNil(t, res.Warning)
	require.ErrorIs(t, res.Warning, domain.TemporalResolutionWarning)
}

func TestExtract_RevocationWithDate(t *testing.T) {
	e := New(90)
	res := e.Extract("Fica revogado o disposto anteriormente, com efeitos a partir de 01/01/2023.", nil)
	require.True(t, res.IsRevoked)
	require.NotNil(t, res.ExpiryDate)
	require.Equal(t, "2023-01-01", res.ExpiryDate.Format("2006-01-02"))
}

func TestExtract_RevocationWithoutNearbyDate(t *testing.T) {
	e := New(90)
	res := e.Extract("Fica revogado o disposto anteriormente. Outras disposições seguem sem datas próximas.", nil)
	require.True(t, res.IsRevoked)
	require.Nil(t, res.ExpiryDate)
}

func TestExtract_Amendment(t *testing.T) {
	e := New(90)
	res := e.Extract("Esta lei altera a Lei nº 1234 quanto aos requisitos de certificação.", nil)
	require.Equal(t, "lei-1234", res.Amends)
}

func TestParseDayFirst_TwoDigitYear(t *testing.T) {
	d := ParseDayFirst("01/02/23")
	require.NotNil(t, d)
	require.Equal(t, 2023, d.Year())
}

func TestParseDayFirst_InvalidNeverPanics(t *testing.T) {
	require.Nil(t, ParseDayFirst("31/02/2023"))
	require.Nil(t, ParseDayFirst("not a date"))
}

func TestExtract_PriorityExplicitOverFallback(t *testing.T) {
	e := New(90)
	pub := date(t, "2020-01-01")
	res := e.Extract("Esta lei entra em vigor em 01/03/2020.", &pub)
	require.Equal(t, "2020-03-01", res.EffectiveDate.Format("2006-01-02"))
}
