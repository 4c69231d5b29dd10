package minkasi

import (
	"encoding/json"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// WriteJSON serialises data as JSON to fileURI (local path or an object
// store URI TileDB's VFS understands), using configURI for TileDB config
// if non-empty.
func WriteJSON(fileURI, configURI string, data any) (int, error) {
	var (
		config *tiledb.Config
		err    error
	)

	if configURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return 0, err
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return 0, err
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return 0, err
	}
	defer vfs.Free()

	stream, err := vfs.Open(fileURI, tiledb.TILEDB_VFS_WRITE)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	jsn, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return 0, err
	}

	return stream.Write(jsn)
}

// JSONDumps constructs a compact JSON string of the supplied data, for
// short diagnostic dumps that don't warrant a file write.
func JSONDumps(data any) (string, error) {
	jsn, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(jsn), nil
}

// JSONIndentDumps constructs an indented JSON string of the supplied data.
func JSONIndentDumps(data any) (string, error) {
	jsn, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return "", err
	}
	return string(jsn), nil
}
