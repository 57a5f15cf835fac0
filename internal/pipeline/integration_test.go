package pipeline

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/connector/destinations/columnar"
	"github.com/ajitpratap0/pitchline/pkg/connector/destinations/sqldb"
	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/testutil"

	_ "github.com/ajitpratap0/pitchline/pkg/connector/sources/file"
	_ "github.com/ajitpratap0/pitchline/pkg/connector/sources/fpl"
)

type RunSuite struct {
	testutil.IntegrationTestSuite
}

func TestRunSuite(t *testing.T) {
	testutil.IntegrationTest(t)
	suite.Run(t, new(RunSuite))
}

func (s *RunSuite) config() *config.Config {
	cfg := config.Default()
	cfg.Source.BaseURL = s.API.BaseURL()
	cfg.Output.Dir = filepath.Join(s.TempDir(), "out")
	cfg.Logging.Level = "error"
	return cfg
}

func (s *RunSuite) run(cfg *config.Config) (*Report, error) {
	testutil.TestLogger(s.T())
	p, err := FromConfig(s.Context(), cfg, nil)
	s.Require().NoError(err)
	defer func() { s.NoError(p.Close()) }()
	return p.Run(s.Context())
}

func (s *RunSuite) TestFPLToParquetAndSQLite() {
	cfg := s.config()
	cfg.Database.Mode = config.ModeRebuild
	cfg.Database.Dialect = "sqlite"
	cfg.Database.DSN = filepath.Join(s.TempDir(), "fpl.db")

	report, err := s.run(cfg)
	s.Require().NoError(err)

	names := make([]string, len(report.Tables))
	for i, t := range report.Tables {
		names[i] = t.Name
	}
	s.Equal([]string{"events", "phases", "teams", "elements", "fixtures"}, names)
	s.Equal(1, s.API.Hits("bootstrap-static"))
	s.Equal(1, s.API.Hits("fixtures"))

	events, _ := report.Table("events")
	s.Equal([]string{"chip_plays"}, events.Dropped)
	s.Equal([]string{"finished"}, events.Converted)

	teams, err := columnar.Read(s.Context(), filepath.Join(cfg.Output.Dir, "fpl_teams.parquet"), nil)
	s.Require().NoError(err)
	defer teams.Release()
	s.Equal(int64(3), teams.NumRows())
	s.Equal([]interface{}{int8(0), int8(0), int8(1)}, teams.ColumnValues("unavailable"))

	ddl, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "fpl_fixtures.sql"))
	s.Require().NoError(err)
	s.Contains(string(ddl), `CREATE TABLE "FPL_FIXTURES" (`)
	s.Contains(string(ddl), `"FINISHED" NUMBER(3)`)
	s.NotContains(string(ddl), "STATS")

	loader, err := sqldb.Open(s.Context(), "sqlite", cfg.Database.DSN)
	s.Require().NoError(err)
	defer loader.Close()
	n, err := loader.CountRows(s.Context(), "FPL_ELEMENTS")
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *RunSuite) TestArrowOutputWithAnnotation() {
	cfg := s.config()
	cfg.Output.Format = "arrow"
	cfg.Output.Compression = "zstd"
	cfg.Output.WriteDDL = false
	cfg.Source.AnnotateRequests = true

	_, err := s.run(cfg)
	s.Require().NoError(err)

	phases, err := columnar.Read(s.Context(), filepath.Join(cfg.Output.Dir, "fpl_phases.arrow"), nil)
	s.Require().NoError(err)
	defer phases.Release()
	s.Equal([]interface{}{int64(200)}, phases.ColumnValues("response_code"))
	s.NoFileExists(filepath.Join(cfg.Output.Dir, "fpl_phases.sql"))
}

func (s *RunSuite) TestUpstreamFailureStopsRun() {
	s.API.FailWith("fixtures", http.StatusServiceUnavailable)

	report, err := s.run(s.config())
	s.True(errors.IsType(err, errors.ErrorTypeTransport))
	s.Len(report.Tables, 4)
	s.NoFileExists(filepath.Join(s.TempDir(), "out", "fpl_fixtures.parquet"))
}

func (s *RunSuite) TestFileSource() {
	path := s.CreateTempFile("players.csv", []byte("id,web_name,injured\n1,Raya,false\n2,Saka,true\n"))
	cfg := s.config()
	cfg.Source.Type = "file"
	cfg.Source.Path = path
	cfg.Output.Prefix = ""

	report, err := s.run(cfg)
	s.Require().NoError(err)
	s.Require().Len(report.Tables, 1)
	s.Equal([]string{"injured"}, report.Tables[0].Converted)
	s.FileExists(filepath.Join(cfg.Output.Dir, "players.parquet"))
	s.Equal(0, s.API.Hits("bootstrap-static"))
}

func (s *RunSuite) TestFileSourceDropAndRename() {
	path := s.CreateTempFile("players.csv", []byte("id,web_name,photo\n1,Raya,1.png\n"))
	cfg := s.config()
	cfg.Source.Type = "file"
	cfg.Source.Path = path
	cfg.Output.Prefix = ""
	cfg.Output.Drop = []string{"photo"}
	cfg.Output.Rename = map[string]string{"web_name": "player_name"}

	_, err := s.run(cfg)
	s.Require().NoError(err)

	players, err := columnar.Read(s.Context(), filepath.Join(cfg.Output.Dir, "players.parquet"), nil)
	s.Require().NoError(err)
	defer players.Release()
	s.Equal([]string{"id", "player_name"}, players.ColumnNames())
}
