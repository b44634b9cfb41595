package archive

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/hpp2334/hol-runtime/wireformat"
)

// OpenZipArg carries the raw bytes of a ZIP container.
type OpenZipArg struct {
	Data []byte `json:"data" jsonschema:"description=Raw ZIP container bytes"`
}

func (m *OpenZipArg) UnmarshalWire(b []byte) error {
	return wireformat.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return wireformat.ConsumeBytes(typ, b, &m.Data)
		}
		return wireformat.Skip, nil
	})
}

func (m *OpenZipArg) MarshalWire() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return wireformat.AppendBytes(nil, 1, m.Data), nil
}

// OpenZipRet returns the handle of the opened archive.
type OpenZipRet struct {
	Data *wireformat.Resource `json:"data"`
}

func (m *OpenZipRet) MarshalWire() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return appendResource(nil, 1, m.Data)
}

func (m *OpenZipRet) UnmarshalWire(b []byte) error {
	return unmarshalResource(b, 1, &m.Data)
}

// QueryDirArg names the archive to list.
type QueryDirArg struct {
	Archiver *wireformat.Resource `json:"archiver"`
}

func (m *QueryDirArg) UnmarshalWire(b []byte) error {
	return unmarshalResource(b, 1, &m.Archiver)
}

func (m *QueryDirArg) MarshalWire() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return appendResource(nil, 1, m.Archiver)
}

// QueryDirItem is one entry of an archive listing.
type QueryDirItem struct {
	Path string `json:"path"`
}

func (m *QueryDirItem) MarshalWire() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return wireformat.AppendString(nil, 1, m.Path), nil
}

func (m *QueryDirItem) UnmarshalWire(b []byte) error {
	return wireformat.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return wireformat.ConsumeString(typ, b, &m.Path)
		}
		return wireformat.Skip, nil
	})
}

// QueryDirRet lists entry paths in archive order.
type QueryDirRet struct {
	Items []QueryDirItem `json:"items"`
}

func (m *QueryDirRet) MarshalWire() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	var b []byte
	for i := range m.Items {
		var err error
		if b, err = wireformat.AppendMessage(b, 1, &m.Items[i]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *QueryDirRet) UnmarshalWire(b []byte) error {
	return wireformat.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return wireformat.Skip, nil
		}
		var item QueryDirItem
		n, err := wireformat.ConsumeMessage(typ, b, &item)
		if err != nil {
			return 0, err
		}
		m.Items = append(m.Items, item)
		return n, nil
	})
}

// LoadFileArg selects one entry of an archive.
type LoadFileArg struct {
	Archiver *wireformat.Resource `json:"archiver"`
	Path     string               `json:"path" jsonschema:"description=Entry path exactly as listed by query_dir"`
}

func (m *LoadFileArg) UnmarshalWire(b []byte) error {
	return wireformat.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			m.Archiver = &wireformat.Resource{}
			return wireformat.ConsumeMessage(typ, b, m.Archiver)
		case 2:
			return wireformat.ConsumeString(typ, b, &m.Path)
		}
		return wireformat.Skip, nil
	})
}

func (m *LoadFileArg) MarshalWire() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := appendResource(nil, 1, m.Archiver)
	if err != nil {
		return nil, err
	}
	return wireformat.AppendString(b, 2, m.Path), nil
}

// LoadFileRet returns the blob holding the entry's contents.
type LoadFileRet struct {
	Data *wireformat.BlobResource `json:"data"`
}

func (m *LoadFileRet) MarshalWire() ([]byte, error) {
	if m == nil || m.Data == nil {
		return nil, nil
	}
	return wireformat.AppendMessage(nil, 1, m.Data)
}

func (m *LoadFileRet) UnmarshalWire(b []byte) error {
	return wireformat.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			m.Data = &wireformat.BlobResource{}
			return wireformat.ConsumeMessage(typ, b, m.Data)
		}
		return wireformat.Skip, nil
	})
}

// CloseZipArg names the archive to release.
type CloseZipArg struct {
	Archiver *wireformat.Resource `json:"archiver"`
}

func (m *CloseZipArg) UnmarshalWire(b []byte) error {
	return unmarshalResource(b, 1, &m.Archiver)
}

func (m *CloseZipArg) MarshalWire() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return appendResource(nil, 1, m.Archiver)
}

func unmarshalResource(b []byte, field protowire.Number, dst **wireformat.Resource) error {
	return wireformat.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == field {
			*dst = &wireformat.Resource{}
			return wireformat.ConsumeMessage(typ, b, *dst)
		}
		return wireformat.Skip, nil
	})
}

// appendResource writes r as an embedded message; a nil handle is omitted.
func appendResource(b []byte, field protowire.Number, r *wireformat.Resource) ([]byte, error) {
	if r == nil {
		return b, nil
	}
	return wireformat.AppendMessage(b, field, r)
}
