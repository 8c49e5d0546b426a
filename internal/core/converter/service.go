package converter

import (
	"fmt"
	"io"
	"time"

	"fiscal-converter-service/internal/core/extract"
	"fiscal-converter-service/internal/core/generator"
	"fiscal-converter-service/internal/core/mapping"
	"fiscal-converter-service/internal/domain"

	"go.uber.org/zap"
)

// Service define a interface do serviço de conversão de documentos fiscais.
type Service interface {
	ExtractHeaders(file io.Reader, filename string) ([]string, error)
	ValidateFile(file io.Reader, filename string) (*mapping.ValidationReport, error)
	Convert(file io.Reader, filename string, req domain.ConversionRequest) (*domain.ConversionResult, error)
}

type service struct {
	logger *zap.Logger
}

// NewService cria uma nova instância do serviço de conversão.
func NewService(logger *zap.Logger) Service {
	return &service{logger: logger}
}

// ExtractHeaders devolve os cabeçalhos detectados no arquivo, para o cliente
// conferir o mapeamento de colunas antes de converter.
func (svc *service) ExtractHeaders(file io.Reader, filename string) ([]string, error) {
	headers, err := extract.Headers(file, filename)
	if err != nil {
		return nil, fmt.Errorf("erro ao extrair cabeçalhos: %w", err)
	}
	return headers, nil
}

// ValidateFile roda a validação estrita sobre o arquivo inteiro sem gerar
// nada: o chamador usa o relatório para rejeitar o lote antes da conversão.
func (svc *service) ValidateFile(file io.Reader, filename string) (*mapping.ValidationReport, error) {
	result, err := extract.Rows(file, filename, 0)
	if err != nil {
		return nil, err
	}

	colMapping := mapping.BuildColumnMapping(result.Headers)
	report := mapping.ValidateBatch(result.Rows, colMapping)

	svc.logger.Info("validação concluída",
		zap.String("arquivo", filename),
		zap.Int("registros", report.RecordCount),
		zap.Int("erros", report.ErrorCount),
	)
	return &report, nil
}

// Convert executa o pipeline completo: extração, inferência de colunas,
// normalização e geração no formato pedido.
func (svc *service) Convert(file io.Reader, filename string, req domain.ConversionRequest) (*domain.ConversionResult, error) {
	// formato desconhecido falha antes de qualquer linha ser lida
	gen, err := generator.ForFormat(req.Format)
	if err != nil {
		return nil, err
	}

	result, err := extract.Rows(file, filename, 0)
	if err != nil {
		return nil, err
	}

	colMapping := mapping.BuildColumnMapping(result.Headers)
	rpsList := mapping.MapRows(result.Rows, colMapping, req.Options)
	if len(rpsList) == 0 {
		return nil, fmt.Errorf("nenhum registro aproveitável encontrado em %s", filename)
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = fmt.Sprintf("LOTE-%d", time.Now().Unix())
	}

	content, err := gen.GenerateBatch(rpsList, batchID, req.Provider, req.Options)
	if err != nil {
		return nil, fmt.Errorf("erro ao gerar documento: %w", err)
	}

	svc.logger.Info("conversão concluída",
		zap.String("arquivo", filename),
		zap.String("formato", req.Format.String()),
		zap.String("lote", batchID),
		zap.Int("registros", len(rpsList)),
	)

	return &domain.ConversionResult{
		Content:     content,
		Extension:   gen.Extension(),
		RecordCount: len(rpsList),
	}, nil
}
