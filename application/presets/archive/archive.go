// Package archive provides the "hol.archiver" command set: open a ZIP
// container held in memory, list its entries and extract one into a blob.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"

	"github.com/hpp2334/hol-runtime/application/command"
	"github.com/hpp2334/hol-runtime/application/resource"
	"github.com/hpp2334/hol-runtime/domain/errors"
	"github.com/hpp2334/hol-runtime/wireformat"
)

// PackageID is the package id every archive command is registered under.
const PackageID = "hol.archiver"

// Command ids.
const (
	OpenZip  = "open_zip"
	QueryDir = "query_dir"
	LoadFile = "load_file"
	CloseZip = "close_zip"
)

// Setup registers the archive commands with reg.
func Setup(reg *command.Registry) error {
	if err := command.Register(reg, PackageID, OpenZip, openZip,
		command.Describe("Open a ZIP container and store it as an archive resource")); err != nil {
		return err
	}
	if err := command.Register(reg, PackageID, QueryDir, queryDir,
		command.Describe("List entry paths of an archive in archive order")); err != nil {
		return err
	}
	if err := command.Register(reg, PackageID, LoadFile, loadFile,
		command.Describe("Extract one archive entry into a new blob")); err != nil {
		return err
	}
	return command.Register(reg, PackageID, CloseZip, closeZip,
		command.Describe("Release an archive resource"))
}

func openZip(ic command.InvocationContext, arg *OpenZipArg) (*OpenZipRet, error) {
	zr, err := zip.NewReader(bytes.NewReader(arg.Data), int64(len(arg.Data)))
	if err != nil {
		return nil, &errors.ArchiveError{Op: OpenZip, Err: err}
	}
	h := ic.Table().Allocate(zr)
	return &OpenZipRet{Data: wireformat.FromResource(h)}, nil
}

func queryDir(ic command.InvocationContext, arg *QueryDirArg) (*QueryDirRet, error) {
	if arg.Archiver == nil {
		return nil, &errors.MissingResourceHandleError{Kind: "archiver"}
	}

	ret := &QueryDirRet{}
	found, err := resource.With(ic.Table(), arg.Archiver.Handle(), func(zr *zip.Reader) error {
		ret.Items = make([]QueryDirItem, 0, len(zr.File))
		for _, f := range zr.File {
			ret.Items = append(ret.Items, QueryDirItem{Path: f.Name})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.MissingArchiverError(arg.Archiver.ID)
	}
	return ret, nil
}

func loadFile(ic command.InvocationContext, arg *LoadFileArg) (*LoadFileRet, error) {
	if arg.Archiver == nil {
		return nil, &errors.MissingResourceHandleError{Kind: "archiver"}
	}

	var data []byte
	found, err := resource.With(ic.Table(), arg.Archiver.Handle(), func(zr *zip.Reader) error {
		var err error
		data, err = readEntry(zr, arg.Path)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.MissingArchiverError(arg.Archiver.ID)
	}

	h := ic.Table().AllocateBlob(data)
	return &LoadFileRet{Data: wireformat.FromBlob(h)}, nil
}

// readEntry reads the entry whose stored name equals path exactly.
func readEntry(zr *zip.Reader, path string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != path {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, &errors.ArchiveError{Op: LoadFile, Path: path, Err: err}
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, &errors.ArchiveError{Op: LoadFile, Path: path, Err: err}
		}
		return data, nil
	}
	return nil, &errors.ArchiveError{
		Op:       LoadFile,
		Path:     path,
		Err:      fmt.Errorf("entry %w", fs.ErrNotExist),
		NotFound: true,
	}
}

func closeZip(ic command.InvocationContext, arg *CloseZipArg) (*wireformat.Empty, error) {
	if arg.Archiver == nil {
		return nil, &errors.MissingResourceHandleError{Kind: "archiver"}
	}
	// Closing twice is a no-op; a handle to a non-archive value is left alone.
	h := arg.Archiver.Handle()
	if _, ok := resource.Get[*zip.Reader](ic.Table(), h); ok {
		ic.Table().Remove(h)
	}
	return &wireformat.Empty{}, nil
}
