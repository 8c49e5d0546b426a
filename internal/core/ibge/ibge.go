// Package ibge concentra as tabelas de códigos do IBGE usadas pelos
// geradores: código numérico das 27 UFs e resolução de nome de município
// para código, com correspondência aproximada para tolerar grafias vindas
// de planilhas e extratos.
package ibge

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/schollz/closestmatch"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ufCodes é a tabela padrão das 27 UFs brasileiras.
var ufCodes = map[string]string{
	"AC": "12", "AL": "27", "AP": "16", "AM": "13", "BA": "29",
	"CE": "23", "DF": "53", "ES": "32", "GO": "52", "MA": "21",
	"MT": "51", "MS": "50", "MG": "31", "PA": "15", "PB": "25",
	"PR": "41", "PE": "26", "PI": "22", "RJ": "33", "RN": "24",
	"RS": "43", "RO": "11", "RR": "14", "SC": "42", "SP": "35",
	"SE": "28", "TO": "17",
}

// DefaultUFCode é o código da Bahia, usado quando a UF é desconhecida.
const DefaultUFCode = "29"

// SalvadorCode é o código de município IBGE usado como padrão do pipeline.
const SalvadorCode = "2927408"

// UFCode devolve o código numérico do IBGE para a sigla de duas letras da UF.
// UF desconhecida cai na Bahia.
func UFCode(uf string) string {
	if code, ok := ufCodes[strings.ToUpper(strings.TrimSpace(uf))]; ok {
		return code
	}
	return DefaultUFCode
}

// municipios cobre as capitais; suficiente para os arquivos atendidos, que
// raramente trazem município fora de capital.
var municipios = map[string]string{
	"RIO BRANCO": "1200401", "MACEIO": "2704302", "MACAPA": "1600303",
	"MANAUS": "1302603", "SALVADOR": "2927408", "FORTALEZA": "2304400",
	"BRASILIA": "5300108", "VITORIA": "3205309", "GOIANIA": "5208707",
	"SAO LUIS": "2111300", "CUIABA": "5103403", "CAMPO GRANDE": "5002704",
	"BELO HORIZONTE": "3106200", "BELEM": "1501402", "JOAO PESSOA": "2507507",
	"CURITIBA": "4106902", "RECIFE": "2611606", "TERESINA": "2211001",
	"RIO DE JANEIRO": "3304557", "NATAL": "2408102", "PORTO ALEGRE": "4314902",
	"PORTO VELHO": "1100205", "BOA VISTA": "1400100", "FLORIANOPOLIS": "4205407",
	"SAO PAULO": "3550308", "ARACAJU": "2800308", "PALMAS": "1721000",
}

var nonAlphanumericRegex = regexp.MustCompile(`[^A-Z0-9 ]+`)
var whitespaceRegex = regexp.MustCompile(`\s+`)

// normalizeName remove acentos e pontuação para casar chaves da tabela.
func normalizeName(str string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}))
	result, _, _ := transform.String(t, str)
	result = strings.ToUpper(result)
	result = nonAlphanumericRegex.ReplaceAllString(result, " ")
	result = whitespaceRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

var municipioKeys []string
var municipioMatcher *closestmatch.ClosestMatch

func init() {
	// o matcher compara contra as chaves em minúsculas; a consulta também
	// precisa ser rebaixada antes do Closest
	for k := range municipios {
		municipioKeys = append(municipioKeys, strings.ToLower(k))
	}
	municipioMatcher = closestmatch.New(municipioKeys, []int{3, 4})
}

// MunicipioCode resolve o nome de um município para o código IBGE.
// Tenta correspondência exata normalizada e depois aproximada; o resultado
// aproximado só é aceito quando compartilha substring com a consulta, para
// não inventar município a partir de lixo da planilha.
func MunicipioCode(name string) (string, bool) {
	key := normalizeName(name)
	if key == "" {
		return "", false
	}
	if code, ok := municipios[key]; ok {
		return code, true
	}
	match := strings.ToUpper(municipioMatcher.Closest(strings.ToLower(key)))
	if match == "" {
		return "", false
	}
	if strings.Contains(key, match) || strings.Contains(match, key) {
		return municipios[match], true
	}
	return "", false
}
