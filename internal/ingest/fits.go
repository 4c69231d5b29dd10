package ingest

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// TODTable is the reshaped result of reading a FITS TOD binary table:
// ndet*nsamp row-major float64 arrays plus the per-sample cadence dt
// derived from the first detector's time column. Time holds that same
// first detector's raw TIME samples (seconds, caller-defined epoch) for
// callers that need the observation's time span rather than just its
// cadence.
type TODTable struct {
	Ndet, Nsamp int
	Dx, Dy, Fnu []float64
	Dt          float64
	Time        []float64
}

// fitsBlockSize is the FITS record/block size in bytes; headers and data
// are always padded to a multiple of this.
const fitsBlockSize = 2880

// ReadTODFromFITSTable reads HDU 1 of a FITS file (a binary table with
// columns PIXID, DX, DY, TIME, FNU, each a big-endian float64 scalar per
// row) and reshapes it to [ndet,nsamp] arrays. The number of distinct
// PIXID values is ndet; nsamp = nrows/ndet. This is a narrow reader
// against the documented column contract, not a general FITS library —
// no FITS library exists anywhere in the reference corpus this ingest
// path was built against, so the binary layout is decoded directly
// against the column contract instead.
func ReadTODFromFITSTable(r io.Reader) (*TODTable, error) {
	hdr, err := readPrimaryHeader(r)
	if err != nil {
		return nil, fmt.Errorf("ingest: reading primary header: %w", err)
	}
	if err := skipData(r, hdr); err != nil {
		return nil, fmt.Errorf("ingest: skipping primary data: %w", err)
	}

	tableHdr, err := readPrimaryHeader(r)
	if err != nil {
		return nil, fmt.Errorf("ingest: reading table header: %w", err)
	}

	naxis1 := tableHdr.intKey("NAXIS1")
	naxis2 := tableHdr.intKey("NAXIS2")
	if naxis1 != 5*8 {
		return nil, fmt.Errorf("ingest: unexpected row width %d bytes, want 5 float64 columns", naxis1)
	}
	nrows := naxis2

	pixid := make([]float64, nrows)
	dx := make([]float64, nrows)
	dy := make([]float64, nrows)
	tm := make([]float64, nrows)
	fnu := make([]float64, nrows)

	row := make([]float64, 5)
	for i := 0; i < nrows; i++ {
		if err := binary.Read(r, binary.BigEndian, &row); err != nil {
			return nil, fmt.Errorf("ingest: reading row %d: %w", i, err)
		}
		pixid[i], dx[i], dy[i], tm[i], fnu[i] = row[0], row[1], row[2], row[3], row[4]
	}
	if err := skipToBlockBoundary(r, nrows*40); err != nil {
		return nil, fmt.Errorf("ingest: skipping table padding: %w", err)
	}

	ndet := countDistinct(pixid)
	if ndet == 0 || nrows%ndet != 0 {
		return nil, fmt.Errorf("ingest: %d rows not evenly divisible by %d distinct PIXID values", nrows, ndet)
	}
	nsamp := nrows / ndet

	var dt float64
	if nsamp > 1 {
		diffs := make([]float64, nsamp-1)
		for i := 0; i < nsamp-1; i++ {
			diffs[i] = tm[i+1] - tm[i]
		}
		dt = median(diffs)
	}

	return &TODTable{
		Ndet: ndet, Nsamp: nsamp,
		Dx: dx, Dy: dy, Fnu: fnu,
		Dt:   dt,
		Time: append([]float64(nil), tm[:nsamp]...),
	}, nil
}

func countDistinct(v []float64) int {
	seen := make(map[float64]struct{}, len(v))
	for _, x := range v {
		seen[x] = struct{}{}
	}
	return len(seen)
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sorted := make([]float64, len(v))
	copy(sorted, v)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// fitsHeader is the minimal subset of FITS header cards this reader
// understands: integer-valued NAXISn keywords.
type fitsHeader struct {
	cards map[string]string
}

func (h fitsHeader) intKey(key string) int {
	var v int
	fmt.Sscanf(h.cards[key], "%d", &v)
	return v
}

func readPrimaryHeader(r io.Reader) (fitsHeader, error) {
	cards := make(map[string]string)
	buf := make([]byte, 80)
	for {
		block := make([]byte, fitsBlockSize)
		if _, err := io.ReadFull(r, block); err != nil {
			return fitsHeader{}, err
		}
		done := false
		for off := 0; off+80 <= fitsBlockSize; off += 80 {
			copy(buf, block[off:off+80])
			card := string(buf)
			key := trimNewline(card[:8])
			if key == "END     " || key == "END" {
				done = true
				break
			}
			if len(card) > 10 && card[8] == '=' {
				cards[trimSpacesRight(key)] = trimSpacesRight(card[10:])
			}
		}
		if done {
			break
		}
	}
	return fitsHeader{cards: cards}, nil
}

func trimSpacesRight(s string) string {
	i := len(s)
	for i > 0 && (s[i-1] == ' ' || s[i-1] == '\t') {
		i--
	}
	return s[:i]
}

func skipData(r io.Reader, hdr fitsHeader) error {
	naxis := hdr.intKey("NAXIS")
	if naxis == 0 {
		return nil
	}
	bitpix := hdr.intKey("BITPIX")
	nelem := 1
	for i := 1; i <= naxis; i++ {
		nelem *= hdr.intKey(fmt.Sprintf("NAXIS%d", i))
	}
	nbytes := nelem * (abs(bitpix) / 8)
	return skipPadding(r, nbytes)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func skipPadding(r io.Reader, nbytes int) error {
	padded := ((nbytes + fitsBlockSize - 1) / fitsBlockSize) * fitsBlockSize
	if padded == 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, int64(padded))
	return err
}

// skipToBlockBoundary discards the padding that follows `consumed` bytes of
// data already read from r, leaving the reader at the next block boundary.
func skipToBlockBoundary(r io.Reader, consumed int) error {
	padded := ((consumed + fitsBlockSize - 1) / fitsBlockSize) * fitsBlockSize
	if padded == consumed {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, int64(padded-consumed))
	return err
}
