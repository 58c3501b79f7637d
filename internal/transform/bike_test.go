package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBicycle(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Bicicleta Aro 29 Caloi", true},
		{"BICICLETA infantil aro 16", true},
		{"Bike Speed Absolute", true},
		{"Bke Aro 26 Houston", true},
		{"Caixa de Embalagem Bike", false},
		{"Adesivo Bike Personalizado", false},
		{"Embalagem para bike aro 29", false},
		{"Capacete MTB", false},
		{"Cadeirinha infantil", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBicycle(tt.name))
		})
	}
}

func TestClassifyBikeFullDescription(t *testing.T) {
	name := "Bicicleta Aro 29 Caloi Preto com Branco 21v Freio a Disco Hidráulico Masculino Adulto MTB"
	require.True(t, IsBicycle(name))

	attrs := ClassifyBike(name)
	assert.Equal(t, strPtr("29"), attrs.WheelSize)
	assert.Equal(t, strPtr("CALOI"), attrs.Brand)
	assert.Equal(t, strPtr("Preto"), attrs.PrimaryColor)
	assert.Equal(t, strPtr("Branco"), attrs.SecondaryColor)
	assert.Nil(t, attrs.TertiaryColor)
	assert.Equal(t, intPtr(21), attrs.Gears)
	assert.Equal(t, strPtr("Disco Hidráulico"), attrs.BrakeType)
	assert.Equal(t, strPtr("Masculino"), attrs.Gender)
	assert.Equal(t, strPtr("Adulto"), attrs.Audience)
	assert.Equal(t, strPtr("MTB"), attrs.Category)
}

func TestExtractWheelSize(t *testing.T) {
	assert.Equal(t, strPtr("26"), extractWheelSize("Bicicleta aro 26 Track"))
	assert.Equal(t, strPtr("20"), extractWheelSize("Bicicleta Aro: 20 infantil"))
	assert.Equal(t, strPtr("700"), extractWheelSize("Bicicleta Speed 700 Audax"))
	assert.Nil(t, extractWheelSize("Bicicleta sem indicacao"))
}

func TestExtractColors(t *testing.T) {
	t.Run("colon delimited list", func(t *testing.T) {
		colors := extractColors("Bicicleta KSW cor: vermelho + preto / branco; aro 29")
		assert.Equal(t, []string{"vermelho", "preto", "branco"}, colors)
	})

	t.Run("pair with com", func(t *testing.T) {
		colors := extractColors("Bicicleta Azul com Amarelo aro 20")
		assert.Equal(t, []string{"Azul", "Amarelo"}, colors)
	})

	t.Run("vocabulary longest match first", func(t *testing.T) {
		colors := extractColors("Bicicleta Caloi AZUL MARINHO aro 29")
		require.NotEmpty(t, colors)
		assert.Equal(t, "Azul Marinho", colors[0], "compound color wins over plain AZUL")
	})

	t.Run("no colors", func(t *testing.T) {
		assert.Empty(t, extractColors("Bicicleta aro 29"))
	})
}

func TestExtractGears(t *testing.T) {
	assert.Equal(t, intPtr(21), extractGears("Bicicleta 21v aro 29"))
	assert.Equal(t, intPtr(18), extractGears("Bicicleta 18 marchas"))
	assert.Equal(t, intPtr(7), extractGears("Bicicleta 7 velocidades"))
	assert.Equal(t, intPtr(0), extractGears("Bicicleta sem marchas aro 16"))
	assert.Nil(t, extractGears("Bicicleta aro 29"))
}

func TestExtractBrandCorrectsTypos(t *testing.T) {
	assert.Equal(t, strPtr("ABSOLUTE"), extractBrand("Bicicleta ABOSOLUTE aro 29"))
	assert.Equal(t, strPtr("ABSOLUTE"), extractBrand("Bicicleta absolut nero"))
	assert.Equal(t, strPtr("KSW"), extractBrand("Bicicleta KSW XLT"))
	assert.Equal(t, strPtr("GTA NX11"), extractBrand("Bicicleta GTA NX11 aro 29"), "longer brand variant preferred")
	assert.Nil(t, extractBrand("Bicicleta generica"))
}

func TestDetectBrakePriority(t *testing.T) {
	assert.Equal(t, strPtr("Disco Hidráulico"), detectBrake("freio a disco hidraulico"))
	assert.Equal(t, strPtr("Disco Hidráulico"), detectBrake("Freio Hidráulico Shimano"))
	assert.Equal(t, strPtr("Disco Mecânico"), detectBrake("freio a disco mecanico"))
	assert.Equal(t, strPtr("Disco Mecânico"), detectBrake("freio a disco"))
	assert.Equal(t, strPtr("V-Brake"), detectBrake("freio v-brake"))
	assert.Nil(t, detectBrake("bicicleta aro 29"))
}

func TestClassifyGenderAudienceCategory(t *testing.T) {
	assert.Equal(t, strPtr("Feminino"), classifyGender("Bicicleta feminina rosa"))
	assert.Equal(t, strPtr("Masculino"), classifyGender("bike masculina"))
	assert.Equal(t, strPtr("Unissex"), classifyGender("bicicleta unissex"))
	assert.Nil(t, classifyGender("bicicleta aro 29"))

	assert.Equal(t, strPtr("Infantil"), classifyAudience("Bicicleta infantil aro 16"))
	assert.Equal(t, strPtr("Juvenil"), classifyAudience("bike juvenil aro 24"))
	assert.Equal(t, strPtr("Adulto"), classifyAudience("bicicleta adulto aro 29"))

	assert.Equal(t, strPtr("Elétrica"), classifyCategory("Bicicleta elétrica Sense"))
	assert.Equal(t, strPtr("MTB"), classifyCategory("bike mountain aro 29"))
	assert.Equal(t, strPtr("Speed"), classifyCategory("bicicleta road carbono"))
	assert.Equal(t, strPtr("Urbana"), classifyCategory("bicicleta de passeio"))
	assert.Equal(t, strPtr("BMX"), classifyCategory("bike bmx aro 20"))
	assert.Nil(t, classifyCategory("bicicleta aro 29"))
}

func TestExtractFrameSize(t *testing.T) {
	assert.Equal(t, strPtr("17"), extractFrameSize("Bicicleta KSW tamanho 17"))
	assert.Equal(t, strPtr("19"), extractFrameSize("Bicicleta Oggi quadro M 19"))
	assert.Nil(t, extractFrameSize("Bicicleta aro 29 sem tamanho"))
}
