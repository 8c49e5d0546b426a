package generator

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fiscal-converter-service/internal/domain"
)

// csvGenerator emite a planilha de conferência: UTF-8 com BOM, ';' como
// separador e cabeçalho fixo em português. As colunas do prestador saem em
// branco de propósito, o contador preenche no destino.
type csvGenerator struct{}

var csvHeader = []string{
	"Data Emissão",
	"Competência",
	"Série",
	"Número RPS",
	"Valor Serviço",
	"CNPJ Prestador",
	"Inscrição Municipal Prestador",
	"CPF/CNPJ Tomador",
	"Razão Social Tomador",
	"Tipo Logradouro Tomador",
	"Logradouro Tomador",
	"Número Tomador",
	"Complemento Tomador",
	"Bairro Tomador",
	"Código Município Tomador",
	"UF Tomador",
	"CEP Tomador",
	"Discriminação",
	"Código Serviço",
	"Aliquota",
	"ISS Retido",
	"Valor ISS",
	"Valor Base Cálculo",
}

func (g *csvGenerator) Extension() string { return "csv" }

func (g *csvGenerator) GenerateBatch(rpsList []domain.Rps, batchID string, provider domain.ProviderInfo, opts domain.Options) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\xEF\xBB\xBF")

	w := csv.NewWriter(&buf)
	w.Comma = ';'
	w.UseCRLF = true

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("erro ao gravar cabeçalho do CSV: %w", err)
	}
	for _, rps := range rpsList {
		if err := w.Write(g.buildRecord(rps)); err != nil {
			return nil, fmt.Errorf("erro ao gravar linha do CSV: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("erro ao finalizar CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *csvGenerator) buildRecord(rps domain.Rps) []string {
	end := rps.Tomador.Endereco

	issRetido := "N"
	if rps.Servico.IssRetido == 1 {
		issRetido = "S"
	}

	// descrição achatada: quebras de linha viram espaço
	desc := strings.ReplaceAll(rps.Servico.Discriminacao, "\r", " ")
	desc = strings.ReplaceAll(desc, "\n", " ")

	return []string{
		formatDateBR(rps.DataEmissao),
		competenciaMonth(rps.Competencia),
		rps.Serie,
		strconv.Itoa(rps.Numero),
		formatMoneyBR(rps.Servico.ValorServico),
		"", // CNPJ do prestador, preenchido no destino
		"", // inscrição municipal do prestador
		rps.Tomador.CpfCnpj,
		rps.Tomador.RazaoSocial,
		"", // tipo de logradouro embutido no próprio logradouro
		end.Logradouro,
		end.Numero,
		end.Complemento,
		end.Bairro,
		end.CodigoMunicipio,
		end.UF,
		end.CEP,
		desc,
		rps.Servico.ItemListaServico,
		formatMoneyBR(rps.Servico.Aliquota),
		issRetido,
		formatMoneyBR(rps.Servico.ValorIss),
		formatMoneyBR(rps.Servico.BaseCalculo),
	}
}

// competenciaMonth reduz a competência AAAA-MM-DD a MM/AAAA.
func competenciaMonth(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("01/2006")
}
