package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	appErrors "github.com/noah-isme/busca-ativa-api/pkg/errors"
	"github.com/noah-isme/busca-ativa-api/pkg/export"
)

type reportSourceStub struct {
	actions    []models.AbsenceAction
	allCalls   int
	byStudents []string
}

func (r *reportSourceStub) ListAll(ctx context.Context) ([]models.AbsenceAction, error) {
	r.allCalls++
	return r.actions, nil
}

func (r *reportSourceStub) ListByStudent(ctx context.Context, studentID string) ([]models.AbsenceAction, error) {
	r.byStudents = append(r.byStudents, studentID)
	out := make([]models.AbsenceAction, 0)
	for _, a := range r.actions {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

type directoryStub map[string]models.Student

func (d directoryStub) Lookup(ctx context.Context, ids []string) (map[string]models.Student, error) {
	out := make(map[string]models.Student)
	for _, id := range ids {
		if s, ok := d[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

type capturingCSV struct {
	data export.Dataset
}

func (c *capturingCSV) Render(data export.Dataset) ([]byte, error) {
	c.data = data
	return []byte("ok"), nil
}

func reportFixture() (*reportSourceStub, directoryStub) {
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	source := &reportSourceStub{actions: []models.AbsenceAction{
		{ID: "a1", StudentID: "s1", ProcessID: "p1", ActionType: models.ActionAttempt1, CreatedAt: base},
		{ID: "a2", StudentID: "s2", ProcessID: "p2", ActionType: models.ActionAttempt1, CreatedAt: base,
			ContactSucceeded: models.AnswerNo, ContactReturned: models.AnswerNo},
		{ID: "a3", StudentID: "s3", ProcessID: "p3", ActionType: models.ActionAnalysis, CreatedAt: base.Add(time.Hour)},
	}}
	students := directoryStub{
		"s1": {ID: "s1", FullName: "Ana Souza", Enrollment: "2024001", ClassName: "7A"},
		"s2": {ID: "s2", FullName: "Bruno Lima", Enrollment: "2024002", ClassName: "8B"},
		"s3": {ID: "s3", FullName: "Carla Dias", Enrollment: "2024003", ClassName: "7A"},
	}
	return source, students
}

func TestExportServiceAbsenceReportRows(t *testing.T) {
	source, students := reportFixture()
	csv := &capturingCSV{}
	svc := NewExportService(source, students, nil, csv, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

	file, err := svc.AbsenceReport(context.Background(), models.AbsenceReportFilter{}, models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "busca_ativa_geral_20240310_120000.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Equal(t, 1, source.allCalls)

	require.Len(t, csv.data.Rows, 3)
	byProcess := make(map[string]map[string]string)
	for _, row := range csv.data.Rows {
		byProcess[row["Processo"]] = row
	}
	assert.Equal(t, "Pendente", byProcess["p1"]["Situação"])
	assert.Equal(t, "2ª tentativa de contato", byProcess["p1"]["Próxima etapa"])
	assert.Equal(t, "Em andamento", byProcess["p2"]["Situação"])
	assert.Equal(t, "Concluído", byProcess["p3"]["Situação"])
	assert.Equal(t, "-", byProcess["p3"]["Próxima etapa"])
	assert.Equal(t, "Análise", byProcess["p3"]["Última etapa"])
	assert.Equal(t, "04/03/2024 10:00", byProcess["p3"]["Atualizado em"])
	assert.Equal(t, "Carla Dias", byProcess["p3"]["Aluno"])
}

func TestExportServiceAbsenceReportFilters(t *testing.T) {
	source, students := reportFixture()
	csv := &capturingCSV{}
	svc := NewExportService(source, students, nil, csv, nil)
	ctx := context.Background()

	_, err := svc.AbsenceReport(ctx, models.AbsenceReportFilter{ClassName: "7a", Status: models.ProcessStatusConcluded}, models.ExportFormatCSV)
	require.NoError(t, err)
	require.Len(t, csv.data.Rows, 1)
	assert.Equal(t, "p3", csv.data.Rows[0]["Processo"])

	file, err := svc.AbsenceReport(ctx, models.AbsenceReportFilter{StudentID: "s2"}, models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, source.byStudents)
	require.Len(t, csv.data.Rows, 1)
	assert.True(t, strings.HasPrefix(file.Filename, "busca_ativa_s2_"))
}

func TestExportServiceAbsenceReportRejectsBadInput(t *testing.T) {
	source, students := reportFixture()
	svc := NewExportService(source, students, nil, nil, nil)

	_, err := svc.AbsenceReport(context.Background(), models.AbsenceReportFilter{}, "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, appCode(err))
	_, err = svc.AbsenceReport(context.Background(), models.AbsenceReportFilter{Status: "archived"}, models.ExportFormatCSV)
	assert.Equal(t, appErrors.ErrValidation.Code, appCode(err))
}

func TestExportServiceDefaultRenderers(t *testing.T) {
	source, students := reportFixture()
	svc := NewExportService(source, students, nil, nil, nil)
	ctx := context.Background()

	csvFile, err := svc.AbsenceReport(ctx, models.AbsenceReportFilter{}, models.ExportFormatCSV)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(csvFile.Data, []byte("\ufeffAluno;Matrícula;")))

	pdfFile, err := svc.AbsenceReport(ctx, models.AbsenceReportFilter{}, models.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdfFile.ContentType)
	assert.True(t, bytes.HasPrefix(pdfFile.Data, []byte("%PDF")))
}
