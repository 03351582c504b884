// Command motorsim-journal inspects and exports command journals written by
// the sqlite and postgres storage backends.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/motorsim/motorsim/internal/config"
	"github.com/motorsim/motorsim/internal/database"
	"github.com/motorsim/motorsim/internal/logging"
	"github.com/motorsim/motorsim/internal/model"
	"github.com/motorsim/motorsim/internal/model/convert"
	"github.com/motorsim/motorsim/internal/storage/memory"

	"gorm.io/gorm"
)

const usage = `usage: motorsim-journal [flags] <command> [session ids]

commands:
  sessions          list recorded sessions
  export <id>...    write each session as a JSON transcript ("latest" for the newest)
  reduce <id>...    keep every -keep'th axis sample of each session, then VACUUM
`

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	sqlitePath := flag.String("sqlite", "", "read a sqlite dump instead of postgres")
	outDir := flag.String("out", "./transcripts", "export output directory")
	keep := flag.Int("keep", 5, "reduce keeps one axis sample in this many")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	logManager := logging.NewSlogManager()
	if err := config.Load(*configDir); err != nil {
		logManager.Setup(os.Stderr, "info", nil)
		logManager.Logger().Debug("No config file, using defaults", "error", err)
	} else {
		logManager.Setup(os.Stderr, config.GetString("logLevel"), nil)
	}
	logger := logManager.Logger()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	db, err := openJournal(*sqlitePath)
	if err != nil {
		logger.Error("Failed to open journal", "error", err)
		os.Exit(1)
	}

	j := &journal{db: db, out: os.Stdout, logger: logger}
	args := flag.Args()
	switch strings.ToLower(args[0]) {
	case "sessions":
		err = j.listSessions()
	case "export":
		err = j.export(args[1:], memoryConfig(*outDir))
	case "reduce":
		err = j.reduce(args[1:], *keep)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func memoryConfig(outDir string) config.MemoryConfig {
	return config.MemoryConfig{OutputDir: outDir, CompressOutput: true}
}

// openJournal connects to postgres, or to a sqlite file when path is set,
// and validates the connection.
func openJournal(sqlitePath string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	if sqlitePath != "" {
		if _, err = os.Stat(sqlitePath); err != nil {
			return nil, err
		}
		db, err = database.GetSqliteDB(sqlitePath)
	} else {
		db, err = database.GetPostgresDB()
	}
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	return db, nil
}

type journal struct {
	db     *gorm.DB
	out    io.Writer
	logger *slog.Logger
}

func (j *journal) listSessions() error {
	sessions, err := model.Sessions(j.db)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(j.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tHOST\tVERSION\tSIMULATORS")
	for _, s := range sessions {
		end := "-"
		if s.EndTime != nil {
			end = s.EndTime.Format(time.RFC3339)
		}
		names := make([]string, 0, len(s.Simulators))
		for _, sim := range s.Simulators {
			names = append(names, sim.Name)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.StartTime.Format(time.RFC3339), end, s.Hostname, s.Version, strings.Join(names, ","))
	}
	return tw.Flush()
}

// resolve maps the command line ids to sessions; "latest" picks the newest.
func (j *journal) resolve(ids []string) ([]model.Session, error) {
	if len(ids) == 0 {
		return nil, errors.New("no session ids provided")
	}
	out := make([]model.Session, 0, len(ids))
	for _, id := range ids {
		var (
			s   model.Session
			err error
		)
		if strings.EqualFold(id, "latest") {
			s, err = model.LatestSession(j.db)
		} else {
			var n uint64
			n, err = strconv.ParseUint(id, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid session id %q", id)
			}
			s, err = model.SessionByID(j.db, uint(n))
		}
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// export replays each session through the memory backend, which writes the
// same transcript format the simulator produces.
func (j *journal) export(ids []string, cfg config.MemoryConfig) error {
	sessions, err := j.resolve(ids)
	if err != nil {
		return err
	}

	for _, s := range sessions {
		txStart := time.Now()
		cmds, err := model.CommandsForSession(j.db, s.ID)
		if err != nil {
			return fmt.Errorf("error getting commands: %w", err)
		}
		samples, err := model.SamplesForSession(j.db, s.ID)
		if err != nil {
			return fmt.Errorf("error getting axis samples: %w", err)
		}

		b := memory.New(cfg)
		session := convert.SessionToCore(s)
		if err := b.StartSession(&session); err != nil {
			return err
		}
		for _, c := range cmds {
			rec := convert.CommandToCore(c)
			if err := b.RecordCommand(&rec); err != nil {
				return err
			}
		}
		for _, m := range samples {
			state := convert.AxisSampleToCore(m)
			if err := b.RecordAxisState(&state); err != nil {
				return err
			}
		}
		end := time.Now()
		if s.EndTime != nil {
			end = *s.EndTime
		}
		if err := b.EndSessionAt(end); err != nil {
			return fmt.Errorf("error exporting session %d: %w", s.ID, err)
		}

		j.logger.Info("Exported session",
			"session", s.ID, "commands", len(cmds), "samples", len(samples),
			"path", b.ExportedFilePath(), "duration", time.Since(txStart))
		fmt.Fprintln(j.out, b.ExportedFilePath())
	}
	return nil
}

// reduce thins the axis samples of each session and reclaims the space.
func (j *journal) reduce(ids []string, keep int) error {
	if keep < 2 {
		return fmt.Errorf("keep must be at least 2, got %d", keep)
	}
	sessions, err := j.resolve(ids)
	if err != nil {
		return err
	}

	for _, s := range sessions {
		txStart := time.Now()
		samples, err := model.SamplesForSession(j.db, s.ID)
		if err != nil {
			return fmt.Errorf("error getting axis samples: %w", err)
		}

		var drop []uint
		for i, m := range samples {
			if i%keep != 0 {
				drop = append(drop, m.ID)
			}
		}
		if len(drop) == 0 {
			j.logger.Info("No axis samples to delete", "session", s.ID, "duration", time.Since(txStart))
			continue
		}
		if err := j.db.Delete(&model.AxisSample{}, drop).Error; err != nil {
			return fmt.Errorf("error deleting axis samples: %w", err)
		}
		j.logger.Info("Deleted axis samples", "session", s.ID, "deleted", len(drop),
			"kept", len(samples)-len(drop), "duration", time.Since(txStart))
	}

	txStart := time.Now()
	if err := j.db.Exec("VACUUM").Error; err != nil {
		return fmt.Errorf("error running VACUUM: %w", err)
	}
	j.logger.Info("Finished VACUUM", "duration", time.Since(txStart))
	return nil
}
