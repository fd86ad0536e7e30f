package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/player-forms-api/internal/models"
	"github.com/noah-isme/player-forms-api/internal/repository"
	appErrors "github.com/noah-isme/player-forms-api/pkg/errors"
	"github.com/noah-isme/player-forms-api/pkg/jobs"
	"github.com/noah-isme/player-forms-api/pkg/storage"
)

type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type fillerStub struct {
	kind    models.TemplateKind
	failFor map[string]bool
}

func (f *fillerStub) Fill(values map[string]string) ([]byte, error) {
	if f.failFor[values["name"]] {
		return nil, fmt.Errorf("fill rejected for %s", values["name"])
	}
	return []byte(fmt.Sprintf("pdf:%s:%s", f.kind, values["name"])), nil
}

type serviceFixture struct {
	svc        *GenerationService
	repo       *repository.JobRepository
	dispatcher *dispatcherStub
	worksheet  *fillerStub
	assessment *fillerStub
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	repo := repository.NewJobRepository()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	dispatcher := &dispatcherStub{}
	worksheet := &fillerStub{kind: models.TemplateWorksheet}
	assessment := &fillerStub{kind: models.TemplateAssessment}
	templates := map[models.TemplateKind]FormFiller{
		models.TemplateWorksheet:  worksheet,
		models.TemplateAssessment: assessment,
	}
	svc := NewGenerationService(repo, dispatcher, templates, store, signer, nil, zap.NewNop(), GenerationServiceConfig{
		MaxUploadBytes: 1 << 20,
		AllowedMIMEs:   []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		ResultTTL:      time.Hour,
	})
	return &serviceFixture{svc: svc, repo: repo, dispatcher: dispatcher, worksheet: worksheet, assessment: assessment}
}

func rosterWorkbook(t *testing.T, sheets []string, rowsBySheet map[string][][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	for i, name := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		header := []interface{}{"number", "proposed-class", "name", "country", "date", "competition", "dob"}
		require.NoError(t, f.SetSheetRow(name, "A1", &header))
		for j, row := range rowsBySheet[name] {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func playerRow(number, name string) []interface{} {
	return []interface{}{number, "SH1", name, "GBR", "2026-03-14", "World Cup", "01-02-1990"}
}

func (fx *serviceFixture) createAndRun(t *testing.T, workbook []byte) *models.GenerationJob {
	t.Helper()
	ctx := context.Background()
	resp, err := fx.svc.CreateJob(ctx, GenerationUpload{
		Filename: "roster.xlsx",
		Size:     int64(len(workbook)),
		MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:  bytes.NewReader(workbook),
	})
	require.NoError(t, err)
	require.Equal(t, models.JobStatusQueued, resp.Status)
	require.Len(t, fx.dispatcher.jobs, 1)

	_ = fx.svc.Handle(ctx, fx.dispatcher.jobs[0])

	job, err := fx.repo.GetByID(ctx, resp.ID)
	require.NoError(t, err)
	return job
}

func (fx *serviceFixture) openArchive(t *testing.T, job *models.GenerationJob) *zip.Reader {
	t.Helper()
	require.NotNil(t, job.ResultURL)
	token := path.Base(*job.ResultURL)
	download, err := fx.svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close() //nolint:errcheck
	data, err := io.ReadAll(download.File)
	require.NoError(t, err)
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return reader
}

func archivePaths(reader *zip.Reader) []string {
	paths := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		paths = append(paths, f.Name)
	}
	return paths
}

func TestGenerationFullRun(t *testing.T) {
	fx := newFixture(t)
	workbook := rosterWorkbook(t, []string{"TeamA", "TeamB"}, map[string][][]interface{}{
		"TeamA": {playerRow("7", "Alice"), playerRow("9", "Bob")},
		"TeamB": {playerRow("4", "Carol")},
	})

	job := fx.createAndRun(t, workbook)
	require.Equal(t, models.JobStatusFinished, job.Status)
	require.Equal(t, 100, job.Progress)
	require.NotNil(t, job.Summary)
	require.Equal(t, 2, job.Summary.Sheets)
	require.Equal(t, 3, job.Summary.RowsTotal)
	require.Equal(t, 3, job.Summary.RowsProcessed)
	require.Equal(t, 6, job.Summary.FormsGenerated)
	require.Empty(t, job.Summary.Failures)

	reader := fx.openArchive(t, job)
	paths := archivePaths(reader)
	require.Equal(t, []string{
		"TeamA/Stages 2C and 3/Alice-7-Worksheet-Stages-2C-and-3.pdf",
		"TeamA/Stages 2AB/Alice-7-Assessment-Form-Stages-2AB.pdf",
		"TeamA/Stages 2C and 3/Bob-9-Worksheet-Stages-2C-and-3.pdf",
		"TeamA/Stages 2AB/Bob-9-Assessment-Form-Stages-2AB.pdf",
		"TeamB/Stages 2C and 3/Carol-4-Worksheet-Stages-2C-and-3.pdf",
		"TeamB/Stages 2AB/Carol-4-Assessment-Form-Stages-2AB.pdf",
		"summary.pdf",
	}, paths)
}

func TestGenerationPartialFillFailure(t *testing.T) {
	fx := newFixture(t)
	fx.worksheet.failFor = map[string]bool{"Bob": true}
	workbook := rosterWorkbook(t, []string{"TeamA"}, map[string][][]interface{}{
		"TeamA": {playerRow("7", "Alice"), playerRow("9", "Bob")},
	})

	job := fx.createAndRun(t, workbook)
	require.Equal(t, models.JobStatusFinished, job.Status)
	require.Equal(t, 3, job.Summary.FormsGenerated)
	require.Len(t, job.Summary.Failures, 1)
	require.Equal(t, appErrors.ErrFill.Code, job.Summary.Failures[0].Code)
	require.Equal(t, "Bob", job.Summary.Failures[0].Player)

	paths := archivePaths(fx.openArchive(t, job))
	require.Contains(t, paths, "TeamA/Stages 2AB/Bob-9-Assessment-Form-Stages-2AB.pdf")
	require.NotContains(t, paths, "TeamA/Stages 2C and 3/Bob-9-Worksheet-Stages-2C-and-3.pdf")
	require.Contains(t, paths, "errors.csv")
	require.Contains(t, paths, "summary.pdf")
}

func TestGenerationRowValidationFailuresReported(t *testing.T) {
	fx := newFixture(t)
	bad := playerRow("9", "Bob")
	bad[6] = "never" // dob
	workbook := rosterWorkbook(t, []string{"TeamA"}, map[string][][]interface{}{
		"TeamA": {playerRow("7", "Alice"), bad},
	})

	job := fx.createAndRun(t, workbook)
	require.Equal(t, models.JobStatusFinished, job.Status)
	require.Equal(t, 2, job.Summary.RowsTotal)
	require.Equal(t, 1, job.Summary.RowsProcessed)
	require.Equal(t, 2, job.Summary.FormsGenerated)
	require.Len(t, job.Summary.Failures, 1)
	require.Equal(t, appErrors.ErrRowValidation.Code, job.Summary.Failures[0].Code)
	require.Equal(t, 3, job.Summary.Failures[0].Row)
}

func TestGenerationMissingColumnFailsJob(t *testing.T) {
	fx := newFixture(t)
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "TeamA"))
	header := []interface{}{"number", "proposed-class", "name", "country", "date", "competition"}
	require.NoError(t, f.SetSheetRow("TeamA", "A1", &header))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	job := fx.createAndRun(t, buf.Bytes())
	require.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	require.Contains(t, *job.ErrorMessage, "dob")
	require.Nil(t, job.ResultURL)
}

func TestGenerationGarbageWorkbookFailsJob(t *testing.T) {
	fx := newFixture(t)
	job := fx.createAndRun(t, []byte("definitely not a workbook"))
	require.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
}

func TestCreateJobRejectsBadUploads(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.CreateJob(ctx, GenerationUpload{Filename: "roster.csv", Content: bytes.NewReader([]byte("x"))})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.CreateJob(ctx, GenerationUpload{
		Filename: "roster.xlsx",
		Size:     2 << 20,
		Content:  bytes.NewReader([]byte("x")),
	})
	require.Error(t, err)

	_, err = fx.svc.CreateJob(ctx, GenerationUpload{
		Filename: "roster.xlsx",
		MimeType: "text/plain",
		Content:  bytes.NewReader([]byte("x")),
	})
	require.Error(t, err)

	_, err = fx.svc.CreateJob(ctx, GenerationUpload{})
	require.Error(t, err)
}

func TestCreateJobEnqueueFailureMarksJobFailed(t *testing.T) {
	fx := newFixture(t)
	fx.dispatcher.err = fmt.Errorf("queue full")

	_, err := fx.svc.CreateJob(context.Background(), GenerationUpload{
		Filename: "roster.xlsx",
		Content:  bytes.NewReader([]byte("x")),
	})
	require.Error(t, err)
}

func TestResolveDownloadRejectsBadTokens(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.ResolveDownload(context.Background(), "bogus")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestResolveDownloadRequiresFinishedJob(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	resp, err := fx.svc.CreateJob(ctx, GenerationUpload{
		Filename: "roster.xlsx",
		Content:  bytes.NewReader([]byte("x")),
	})
	require.NoError(t, err)

	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	token, _, err := signer.Generate(resp.ID, "player-forms-"+resp.ID+".zip")
	require.NoError(t, err)

	_, err = fx.svc.ResolveDownload(ctx, token)
	require.Error(t, err)
}

func TestGetStatusUnknownJob(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.GetStatus(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}
