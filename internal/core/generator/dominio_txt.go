package generator

import (
	"strconv"
	"strings"

	"fiscal-converter-service/internal/domain"
)

// dominioGenerator emite o TXT posicional de importação de notas do sistema
// contábil Domínio: 33 colunas separadas por ';', sem cabeçalho, uma linha
// por registro, linhas unidas por CRLF.
type dominioGenerator struct{}

const dominioColumns = 33

func (g *dominioGenerator) Extension() string { return "txt" }

func (g *dominioGenerator) GenerateBatch(rpsList []domain.Rps, batchID string, provider domain.ProviderInfo, opts domain.Options) ([]byte, error) {
	opts = opts.WithDefaults()

	lines := make([]string, 0, len(rpsList))
	counter := opts.StartingNumber
	for _, rps := range rpsList {
		docNumber := rps.Numero
		if docNumber == 0 {
			docNumber = counter
		}
		counter++
		lines = append(lines, g.buildLine(rps, docNumber, opts))
	}
	return []byte(strings.Join(lines, "\r\n")), nil
}

func (g *dominioGenerator) buildLine(rps domain.Rps, docNumber int, opts domain.Options) string {
	end := rps.Tomador.Endereco

	uf := end.UF
	if uf == "" {
		uf = "BA"
	}
	city := end.XMun
	if city == "" {
		city = "Salvador"
	}
	street := end.Numero
	if end.Logradouro != "" {
		street = end.Logradouro + ", " + end.Numero
	}
	destUF := end.UF
	if destUF == "" {
		destUF = opts.State
	}

	value := formatMoneyComma(rps.Servico.ValorServico)
	zero := "0,00"

	cols := make([]string, dominioColumns)
	for i := range cols {
		cols[i] = zero
	}

	cols[0] = rps.Tomador.CpfCnpj
	cols[1] = sanitizeDominio(stripAccents(rps.Tomador.RazaoSocial), 150)
	cols[2] = sanitizeDominio(uf, 2)
	cols[3] = sanitizeDominio(stripAccents(city), 60)
	cols[4] = sanitizeDominio(stripAccents(street), 150)
	cols[5] = strconv.Itoa(docNumber)
	cols[6] = rps.Serie
	cols[7] = formatDateBR(rps.DataEmissao)
	cols[8] = "0"
	cols[9] = opts.Acumulador
	cols[10] = cfopFor(destUF, opts.State)
	cols[11] = value
	cols[13] = value
	// código do item e CST PIS/COFINS ficam em branco na importação
	cols[24] = ""
	cols[27] = ""

	return strings.Join(cols, ";")
}

// sanitizeDominio troca o separador de campo e quebras de linha por espaço
// antes de cortar no limite da coluna.
func sanitizeDominio(s string, max int) string {
	r := strings.NewReplacer("|", " ", ";", " ", "\n", " ", "\r", " ")
	return truncate(strings.TrimSpace(r.Replace(s)), max)
}
