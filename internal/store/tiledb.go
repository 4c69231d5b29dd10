// Package store persists maps and mapsets as TileDB dense arrays: a 2-D
// pixel grid attribute plus array-level metadata carrying the projection
// (world limits, pixel size, projection tag). This realizes the
// "self-describing raster" contract: reading the array back recovers both
// the pixel data and enough metadata to reproject it without a sidecar
// file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// RasterMetadata is the projection contract embedded as array-level
// TileDB metadata alongside the pixel attribute.
type RasterMetadata struct {
	Nx, Ny                 int
	Xmin, Xmax, Ymin, Ymax float64
	Pixsize                float64
	Proj                   string
}

const pixAttrName = "PIX"
const metadataKey = "raster"

// mapSchema builds a dense 2-D array schema (X, Y dimensions) with a
// single float64 PIX attribute, following the same
// domain-then-filtered-attribute construction as a dense ping-indexed
// array: one dimension per axis, a zstd-compressed attribute, row-major
// cell and tile order.
func mapSchema(ctx *tiledb.Context, nx, ny int) (*tiledb.ArraySchema, error) {
	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}
	defer domain.Free()

	tileX := int32(minInt(nx, 256))
	tileY := int32(minInt(ny, 256))

	dimX, err := tiledb.NewDimension(ctx, "X", tiledb.TILEDB_INT32, []int32{0, int32(nx - 1)}, tileX)
	if err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}
	defer dimX.Free()

	dimY, err := tiledb.NewDimension(ctx, "Y", tiledb.TILEDB_INT32, []int32{0, int32(ny - 1)}, tileY)
	if err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}
	defer dimY.Free()

	if err := domain.AddDimensions(dimX, dimY); err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}

	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}

	if err := schema.SetDomain(domain); err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}

	filts, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}
	defer filts.Free()
	zstd, err := ZstdFilter(ctx, 16)
	if err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}
	defer zstd.Free()
	if err := AddFilters(filts, zstd); err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}

	attr, err := tiledb.NewAttribute(ctx, pixAttrName, tiledb.TILEDB_FLOAT64)
	if err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}
	defer attr.Free()
	if err := AttachFilters(filts, attr); err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}
	if err := schema.AddAttributes(attr); err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}

	return schema, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// RasterMap is the minimal pixel-grid view store operates on, satisfied
// by *minkasi.SkyMap without this package importing the root package
// (which would create an import cycle).
type RasterMap interface {
	Shape() (nx, ny int)
	Limits() (xmin, xmax, ymin, ymax, pixsize float64)
	Projection() string
	Pixels() []float64
	SetPixels([]float64)
}

// WriteSkyMap creates a dense TileDB array at uri holding m's pixel grid
// plus its projection metadata. It returns an error if the array cannot be
// created, e.g. because one already exists at uri.
func WriteSkyMap(ctx *tiledb.Context, uri string, m RasterMap) error {
	nx, ny := m.Shape()
	schema, err := mapSchema(ctx, nx, ny)
	if err != nil {
		return err
	}

	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return errors.Join(ErrCreateAttr, err)
	}
	defer array.Free()

	if err := array.Create(schema); err != nil {
		return errors.Join(ErrCreateAttr, err)
	}

	if err := array.Open(tiledb.TILEDB_WRITE); err != nil {
		return errors.Join(ErrCreateAttr, err)
	}
	defer array.Close()

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return errors.Join(ErrCreateAttr, err)
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return errors.Join(ErrCreateAttr, err)
	}
	pix := m.Pixels()
	if _, err := query.SetDataBuffer(pixAttrName, pix); err != nil {
		return errors.Join(ErrSetBuff, err)
	}
	if err := query.Submit(); err != nil {
		return errors.Join(ErrCreateAttr, err)
	}
	if err := query.Finalize(); err != nil {
		return errors.Join(ErrCreateAttr, err)
	}

	xmin, xmax, ymin, ymax, pixsize := m.Limits()
	md := RasterMetadata{
		Nx: nx, Ny: ny,
		Xmin: xmin, Xmax: xmax, Ymin: ymin, Ymax: ymax,
		Pixsize: pixsize,
		Proj:    m.Projection(),
	}
	jsn, err := json.Marshal(md)
	if err != nil {
		return errors.Join(err, errors.New("error serialising raster metadata"))
	}
	if err := array.PutMetadata(metadataKey, string(jsn)); err != nil {
		return errors.Join(err, errors.New("error writing raster metadata to array: "+uri))
	}

	return nil
}

// ReadSkyMap opens the dense array at uri, sets m's pixel grid via
// SetPixels, and returns the projection metadata it read; applying that
// metadata to m is left to the caller.
func ReadSkyMap(ctx *tiledb.Context, uri string, m RasterMap) (RasterMetadata, error) {
	var md RasterMetadata

	array, err := ArrayOpen(ctx, uri, tiledb.TILEDB_READ)
	if err != nil {
		return md, errors.Join(err, errors.New("error opening (r) tiledb array: "+uri))
	}
	defer array.Free()
	defer array.Close()

	_, _, rawMd, err := array.GetMetadata(metadataKey)
	if err != nil {
		return md, errors.Join(err, errors.New("error reading raster metadata from array: "+uri))
	}
	jsn, ok := rawMd.(string)
	if !ok {
		return md, fmt.Errorf("error: raster metadata on %s is not a string", uri)
	}
	if err := json.Unmarshal([]byte(jsn), &md); err != nil {
		return md, errors.Join(err, errors.New("error deserialising raster metadata"))
	}

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return md, errors.Join(ErrCreateAttr, err)
	}
	defer query.Free()

	subarr, err := array.NewSubarray()
	if err != nil {
		return md, errors.Join(ErrCreateAttr, err)
	}
	defer subarr.Free()
	if err := subarr.AddRangeByName("X", tiledb.MakeRange(int32(0), int32(md.Nx-1))); err != nil {
		return md, errors.Join(ErrCreateAttr, err)
	}
	if err := subarr.AddRangeByName("Y", tiledb.MakeRange(int32(0), int32(md.Ny-1))); err != nil {
		return md, errors.Join(ErrCreateAttr, err)
	}
	if err := query.SetSubarray(subarr); err != nil {
		return md, errors.Join(ErrCreateAttr, err)
	}
	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return md, errors.Join(ErrCreateAttr, err)
	}

	pix := make([]float64, md.Nx*md.Ny)
	if _, err := query.SetDataBuffer(pixAttrName, pix); err != nil {
		return md, errors.Join(ErrSetBuff, err)
	}
	if err := query.Submit(); err != nil {
		return md, errors.Join(ErrCreateAttr, err)
	}

	m.SetPixels(pix)
	return md, nil
}

// WriteMapset persists every component map of a mapset under
// uriPrefix/0, uriPrefix/1, ... preserving component order on read back
// (callers reconstruct a Mapset by re-listing the same prefix).
func WriteMapset(ctx *tiledb.Context, uriPrefix string, maps []RasterMap) error {
	for i, m := range maps {
		uri := fmt.Sprintf("%s/%d", uriPrefix, i)
		if err := WriteSkyMap(ctx, uri, m); err != nil {
			return fmt.Errorf("mapset component %d: %w", i, err)
		}
	}
	return nil
}
