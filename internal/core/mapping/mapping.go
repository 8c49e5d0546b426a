package mapping

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"fiscal-converter-service/internal/domain"
	"fiscal-converter-service/internal/core/ibge"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Apelidos de coluna por campo, em ordem de prioridade. Para cada apelido
// tenta-se primeiro correspondência exata com o cabeçalho normalizado e em
// seguida correspondência por substring, de forma que "valor bruto" capture
// tanto "Valor Bruto" quanto "Valor Bruto (R$)".
var fieldAliases = map[domain.Field][]string{
	domain.FieldData: {
		"data recebimento", "dt recebimento", "data emissao", "data docto",
		"dt. pagto", "dt.", "vencimento", "competencia",
	},
	domain.FieldValor: {
		"valor bruto", "valor total", "valor servico", "valor liq",
		"valor", "vlr", "total",
	},
	domain.FieldRazaoSocial: {
		"cliente", "tomador", "razao social", "nome", "empresa", "locatarios",
	},
	domain.FieldCnpj: {
		"cnpj / cpf", "cpf / cnpj", "cnpj", "cpf", "documento",
	},
	domain.FieldLogradouro:  {"logradouro", "endereco", "rua"},
	domain.FieldNumero:      {"numero", "nro", "nº"},
	domain.FieldComplemento: {"complemento"},
	domain.FieldBairro:      {"bairro"},
	domain.FieldMunicipio:   {"municipio", "cidade"},
	domain.FieldUF:          {"uf", "estado"},
	domain.FieldCEP:         {"cep"},
}

var (
	nonDigitRegex    = regexp.MustCompile(`\D`)
	leadingJunkRegex = regexp.MustCompile(`^[\d.,\s]+`)
	cnpjBleedRegex   = regexp.MustCompile(`\d{2,3}[./,-]\d{3}[./,-]\d{3}[./,-]?[\d./,-]*-?\d{0,2}`)
	personTypeRegex  = regexp.MustCompile(`(?i)\b(JURIDICO|JURÍDICO|FISICO|FÍSICO)\b`)
	multiSpaceRegex  = regexp.MustCompile(`\s{2,}`)
	amountJunkRegex  = regexp.MustCompile(`[^0-9.-]`)
	competRegex      = regexp.MustCompile(`^(\d{4})(\d{2})$`)
)

// normalizeHeader baixa a caixa, remove acentos e comprime espaços para que
// a comparação com os apelidos seja estável entre planilhas.
func normalizeHeader(h string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	clean, _, err := transform.String(t, h)
	if err != nil {
		clean = h
	}
	clean = strings.ToLower(strings.TrimSpace(clean))
	return multiSpaceRegex.ReplaceAllString(clean, " ")
}

// BuildColumnMapping infere qual cabeçalho alimenta cada campo canônico.
// Campos sem cabeçalho compatível ficam fora do mapa e caem nos padrões na
// hora da normalização.
func BuildColumnMapping(headers []string) domain.ColumnMapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	mapping := make(domain.ColumnMapping)
	for _, field := range domain.AllFields {
		aliases := fieldAliases[field]
	aliasLoop:
		for _, alias := range aliases {
			for i, h := range normalized {
				if h == alias {
					mapping[field] = headers[i]
					break aliasLoop
				}
			}
			for i, h := range normalized {
				if h != "" && strings.Contains(h, alias) {
					mapping[field] = headers[i]
					break aliasLoop
				}
			}
		}
	}
	return mapping
}

// ParseAmount converte valores monetários no formato brasileiro ("1.234,56")
// ou já com ponto decimal ("1234.56") em float64. Texto irreconhecível vale 0.
func ParseAmount(raw string) float64 {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, ",") {
		// padrão brasileiro: ponto é milhar, vírgula é decimal
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	s = amountJunkRegex.ReplaceAllString(s, "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// sentinela para datas ilegíveis: mantém o registro no lote e deixa o erro
// visível na validação estrita
const fallbackDate = "2000-01-01"

// NormalizeDate aceita ISO (AAAA-MM-DD, com ou sem hora), d/m/Y e d/m/y e
// devolve sempre AAAA-MM-DD. Datas ilegíveis caem na sentinela.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fallbackDate
	}
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, ".", "/")

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("2006-01-02")
	}
	// dia e mês podem vir sem zero à esquerda
	if t, err := time.Parse("2/1/2006", s); err == nil {
		return t.Format("2006-01-02")
	}
	if t, err := time.Parse("2/1/06", s); err == nil {
		// ano de 2 dígitos é sempre 20AA
		if t.Year() < 2000 {
			t = t.AddDate(100, 0, 0)
		}
		return t.Format("2006-01-02")
	}
	return fallbackDate
}

// competenciaToDate trata colunas de competência no formato AAAAMM,
// ancorando no primeiro dia do mês.
func competenciaToDate(raw string) (string, bool) {
	m := competRegex.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	return m[1] + "-" + m[2] + "-01", true
}

// CleanRazaoSocial remove os ruídos comuns de exportação: numeração de linha
// colada no nome, fragmento de CNPJ, marcador de tipo de pessoa e tags.
func CleanRazaoSocial(raw string) string {
	s := strings.ReplaceAll(raw, "<>", "")
	s = leadingJunkRegex.ReplaceAllString(s, "")
	s = cnpjBleedRegex.ReplaceAllString(s, "")
	s = personTypeRegex.ReplaceAllString(s, "")
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// DigitsOnly descarta tudo que não for dígito do CPF/CNPJ.
func DigitsOnly(raw string) string {
	return nonDigitRegex.ReplaceAllString(raw, "")
}

// rótulos que denunciam linha de cabeçalho repetido no meio dos dados
var headerLabels = map[string]bool{
	"CLIENTE":      true,
	"NOME":         true,
	"RAZAO SOCIAL": true,
	"RAZÃO SOCIAL": true,
}

// admitRow decide se a linha bruta vira registro: fora ficam cabeçalhos
// repetidos, linhas de totalização e linhas sem identificação nenhuma.
func admitRow(name, taxID string, value float64) bool {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if headerLabels[upper] {
		return false
	}
	if strings.Contains(upper, "TOTAL") ||
		strings.Contains(upper, "ALUGUEIS") ||
		strings.Contains(upper, "RESIDENCIAIS") {
		return false
	}
	if upper == "" && taxID == "" {
		return false
	}
	if value == 0 && taxID == "" {
		return false
	}
	return true
}

// MapRows normaliza as linhas brutas em registros RPS canônicos. A numeração
// do RPS é sempre 1-based dentro do lote; o número inicial das opções vale só
// para a sequência de documentos dos geradores. Linhas rejeitadas pelo filtro
// de admissão são descartadas em silêncio.
func MapRows(rows []domain.RawRow, mapping domain.ColumnMapping, opts domain.Options) []domain.Rps {
	opts = opts.WithDefaults()

	var rpsList []domain.Rps
	numero := 1
	for _, row := range rows {
		rawName, _ := mapping.Value(row, domain.FieldRazaoSocial)
		rawTaxID, _ := mapping.Value(row, domain.FieldCnpj)
		rawValue, _ := mapping.Value(row, domain.FieldValor)

		name := CleanRazaoSocial(rawName)
		taxID := DigitsOnly(rawTaxID)
		value := ParseAmount(rawValue)

		if !admitRow(name, taxID, value) {
			continue
		}

		rawDate, hasDate := mapping.Value(row, domain.FieldData)
		date := NormalizeDate(rawDate)
		if (!hasDate || date == fallbackDate) && rawDate != "" {
			if d, ok := competenciaToDate(rawDate); ok {
				date = d
			}
		}
		if date == fallbackDate {
			// última chance: coluna de competência literal, fora do mapeamento
			for _, key := range []string{"Competencia", "Competência"} {
				if d, ok := competenciaToDate(row[key]); ok {
					date = d
					break
				}
			}
		}

		rps := buildRps(numero, date, name, taxID, value, row, mapping, opts)
		rpsList = append(rpsList, rps)
		numero++
	}
	return rpsList
}

func buildRps(numero int, date, name, taxID string, value float64, row domain.RawRow, mapping domain.ColumnMapping, opts domain.Options) domain.Rps {
	municipio := ibge.SalvadorCode
	xMun := "Salvador"
	uf := opts.State
	if rawMun, ok := mapping.Value(row, domain.FieldMunicipio); ok && strings.TrimSpace(rawMun) != "" {
		if code, found := ibge.MunicipioCode(rawMun); found {
			municipio = code
			xMun = strings.TrimSpace(rawMun)
		}
	}
	if rawUF, ok := mapping.Value(row, domain.FieldUF); ok {
		if u := strings.ToUpper(strings.TrimSpace(rawUF)); len(u) == 2 {
			uf = u
		}
	}

	cep := "40000000"
	if rawCEP, ok := mapping.Value(row, domain.FieldCEP); ok {
		if digits := DigitsOnly(rawCEP); len(digits) == 8 {
			cep = digits
		}
	}

	logradouro, _ := mapping.Value(row, domain.FieldLogradouro)
	numEnd, _ := mapping.Value(row, domain.FieldNumero)
	complemento, _ := mapping.Value(row, domain.FieldComplemento)
	bairro, _ := mapping.Value(row, domain.FieldBairro)

	return domain.Rps{
		Numero:      numero,
		Serie:       "1",
		Tipo:        "1",
		DataEmissao: date,
		Competencia: date,
		Tomador: domain.Tomador{
			CpfCnpj:     taxID,
			RazaoSocial: name,
			Endereco: domain.Endereco{
				Logradouro:      strings.TrimSpace(logradouro),
				Numero:          strings.TrimSpace(numEnd),
				Complemento:     strings.TrimSpace(complemento),
				Bairro:          strings.TrimSpace(bairro),
				CodigoMunicipio: municipio,
				UF:              uf,
				CEP:             cep,
				XMun:            xMun,
			},
		},
		Servico: domain.Servico{
			ValorServico:     value,
			IssRetido:        2,
			BaseCalculo:      value,
			ValorLiquidoNfse: value,
			ItemListaServico: "0101",
			Discriminacao:    name,
			CodigoMunicipio:  municipio,
		},
	}
}
