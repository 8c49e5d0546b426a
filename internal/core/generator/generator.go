package generator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"fiscal-converter-service/internal/domain"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Generator monta o arquivo final de um lote já normalizado. As quatro
// implementações são um conjunto fechado, despachado por domain.OutputFormat.
type Generator interface {
	GenerateBatch(rpsList []domain.Rps, batchID string, provider domain.ProviderInfo, opts domain.Options) ([]byte, error)
	Extension() string
}

// ForFormat devolve o gerador do formato pedido. Formato desconhecido falha
// antes de qualquer registro ser processado.
func ForFormat(format domain.OutputFormat) (Generator, error) {
	switch format {
	case domain.FormatServico:
		return &nfseGenerator{}, nil
	case domain.FormatSaida:
		return &nfeGenerator{}, nil
	case domain.FormatDominioTxt:
		return &dominioGenerator{}, nil
	case domain.FormatCSV:
		return &csvGenerator{}, nil
	default:
		return nil, fmt.Errorf("formato de saída desconhecido: %q", format)
	}
}

// formatMoneyComma formata com vírgula decimal e sem separador de milhar,
// como o importador municipal espera ("0,00" para zero).
func formatMoneyComma(v float64) string {
	return strings.ReplaceAll(strconv.FormatFloat(v, 'f', 2, 64), ".", ",")
}

// formatMoneyDot formata com ponto decimal e 2 casas.
func formatMoneyDot(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatMoneyBR formata no padrão brasileiro completo: milhar com ponto,
// decimal com vírgula.
func formatMoneyBR(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart := s[:len(s)-3]
	decPart := s[len(s)-2:]

	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	out := b.String() + "," + decPart
	if neg {
		out = "-" + out
	}
	return out
}

// formatDateBR converte AAAA-MM-DD em DD/MM/AAAA; datas fora do padrão
// passam como vieram.
func formatDateBR(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("02/01/2006")
}

// cfopFor escolhe a natureza da operação: dentro do estado do prestador é
// 5949, fora é 6949.
func cfopFor(payerUF, providerUF string) string {
	if strings.EqualFold(strings.TrimSpace(payerUF), strings.TrimSpace(providerUF)) {
		return "5949"
	}
	return "6949"
}

// stripAccents remove diacríticos para que o texto sobreviva à codificação
// de byte único dos importadores.
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
