package ibge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUFCode(t *testing.T) {
	assert.Equal(t, "29", UFCode("BA"))
	assert.Equal(t, "35", UFCode("sp"))
	assert.Equal(t, "33", UFCode(" RJ "))

	t.Run("UF desconhecida cai na Bahia", func(t *testing.T) {
		assert.Equal(t, DefaultUFCode, UFCode("XX"))
		assert.Equal(t, DefaultUFCode, UFCode(""))
	})
}

func TestMunicipioCode(t *testing.T) {
	t.Run("correspondência exata normalizada", func(t *testing.T) {
		code, ok := MunicipioCode("Salvador")
		assert.True(t, ok)
		assert.Equal(t, "2927408", code)

		code, ok = MunicipioCode("são paulo")
		assert.True(t, ok)
		assert.Equal(t, "3550308", code)

		code, ok = MunicipioCode("FLORIANÓPOLIS")
		assert.True(t, ok)
		assert.Equal(t, "4205407", code)
	})

	t.Run("aproximada com substring compartilhada", func(t *testing.T) {
		code, ok := MunicipioCode("SALVADOR - BA")
		assert.True(t, ok)
		assert.Equal(t, "2927408", code)
	})

	t.Run("lixo não vira município", func(t *testing.T) {
		_, ok := MunicipioCode("")
		assert.False(t, ok)

		_, ok = MunicipioCode("...")
		assert.False(t, ok)
	})
}
