package exports

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"crescoflow/internal/adapters/storage"
	"crescoflow/internal/leads/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []domain.Lead{{
		CompanyName:     "Acme, BV",
		Sector:          "Bouw",
		City:            "Gent",
		Website:         "https://acme.be",
		CEOName:         "Jan Peeters",
		CEO:             domain.Person{Email: "jan@acme.be", Phone: "+32470123456"},
		WebsiteScore:    4,
		OutboundChannel: domain.ChannelColdSMS,
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Bedrijfsnaam,Sector,Stad,Website,Zaakvoerder,CEO Email,CEO Telefoon,Website Score,Outbound Kanaal", lines[0])
	assert.Equal(t, `"Acme, BV",Bouw,Gent,https://acme.be,Jan Peeters,jan@acme.be,+32470123456,4,coldsms`, lines[1])
}

func TestParseImport(t *testing.T) {
	in := "companyName,sector,city,website,ceoName\n" +
		"Bakkerij Jansen, Bakkerij ,Gent,jansen.be,Jan Jansen\n" +
		"Short,row,only\n" +
		"Loodgieter Peeters,,Brugge,peeters.be\n" +
		",Bouw,Gent,x.be\n" +
		"\"Quoted, NV\",Bouw,Aalst,q.be,\n"

	res, err := ParseImport(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Leads, 3)

	assert.Equal(t, "Bakkerij Jansen", res.Leads[0].CompanyName)
	assert.Equal(t, "Bakkerij", res.Leads[0].Sector)
	assert.Equal(t, "Jan Jansen", res.Leads[0].CEOName)
	assert.Equal(t, domain.StageCold, res.Leads[0].PipelineTag)
	assert.Equal(t, "csv", res.Leads[0].Source)

	assert.Equal(t, "Unknown", res.Leads[1].Sector)
	assert.Empty(t, res.Leads[1].CEOName)
	assert.Equal(t, "Quoted, NV", res.Leads[2].CompanyName)
}

func TestParseImportEmpty(t *testing.T) {
	res, err := ParseImport(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, res.Leads)
}

type fakeStorage struct {
	bucket, folder, name, contentType string
	body                              string
}

func (f *fakeStorage) EnsureBucketExists(context.Context, string) error { return nil }

func (f *fakeStorage) UploadFile(_ context.Context, bucket, folder, fileName, contentType string, r io.Reader, _ int64) (string, error) {
	data, _ := io.ReadAll(r)
	f.bucket, f.folder, f.name, f.contentType, f.body = bucket, folder, fileName, contentType, string(data)
	return folder + "/" + fileName, nil
}

func (f *fakeStorage) GenerateDownloadURL(_ context.Context, _ string, key string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://minio.local/" + key, FileKey: key}, nil
}

func TestPublisherUploadsCSV(t *testing.T) {
	fs := &fakeStorage{}
	p := NewPublisher(fs, "lead-exports")
	p.now = func() time.Time { return time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC) }

	url, err := p.Publish(context.Background(), []domain.Lead{{CompanyName: "Acme"}})
	require.NoError(t, err)

	assert.Equal(t, "lead-exports", fs.bucket)
	assert.Equal(t, "exports/2025-06-02", fs.folder)
	assert.Equal(t, "crescoflow_leads_20250602T093000.csv", fs.name)
	assert.Equal(t, ContentType, fs.contentType)
	assert.True(t, strings.HasPrefix(fs.body, "Bedrijfsnaam,"))
	assert.Equal(t, "https://minio.local/exports/2025-06-02/crescoflow_leads_20250602T093000.csv", url.URL)
}
