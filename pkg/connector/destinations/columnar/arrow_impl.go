package columnar

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/table"
)

// arrowCompression maps a configured codec onto the two the IPC format
// supports: snappy falls back to lz4 and gzip to zstd.
func arrowCompression(compression string) (string, error) {
	switch compression {
	case "none":
		return "none", nil
	case "lz4", "snappy", "":
		return "lz4", nil
	case "zstd", "gzip":
		return "zstd", nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", compression)
	}
}

func (w *Writer) writeArrow(out io.Writer, t *table.Table) error {
	codec, err := arrowCompression(w.config.Compression)
	if err != nil {
		return err
	}
	opts := []ipc.Option{ipc.WithSchema(t.Schema()), ipc.WithAllocator(w.mem)}
	switch codec {
	case "zstd":
		opts = append(opts, ipc.WithZstd())
	case "lz4":
		opts = append(opts, ipc.WithLZ4())
	}

	fw, err := ipc.NewFileWriter(out, opts...)
	if err != nil {
		return err
	}
	if err := fw.Write(t.Record()); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func readArrow(name string, r ipc.ReadAtSeeker, mem memory.Allocator) (*table.Table, error) {
	reader, err := ipc.NewFileReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	recs := make([]arrow.Record, 0, reader.NumRecords())
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for i := 0; i < reader.NumRecords(); i++ {
		rec, err := reader.RecordAt(i)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	tbl := array.NewTableFromRecords(reader.Schema(), recs)
	defer tbl.Release()
	return table.FromArrowTable(name, tbl, mem)
}
