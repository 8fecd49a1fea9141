package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// protoSchema holds a compiled .proto file's message descriptor, used to
// decode every message on a topic.
type protoSchema struct {
	descriptor protoreflect.MessageDescriptor
}

// compileProtoSchema compiles protoFilePath with protocompile (a pure-Go
// protoc replacement, avoiding a protoc binary dependency) and resolves
// messageType against the compiled file's top-level messages.
func compileProtoSchema(ctx context.Context, protoFilePath, messageType string) (*protoSchema, error) {
	resolver := protocompile.WithStandardImports(&protocompile.SourceResolver{
		ImportPaths: []string{filepath.Dir(protoFilePath)},
	})
	compiler := protocompile.Compiler{Resolver: resolver}

	files, err := compiler.Compile(ctx, filepath.Base(protoFilePath))
	if err != nil {
		return nil, fmt.Errorf("%w: compile proto schema %s: %v", errs.ErrResource, protoFilePath, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: proto schema %s compiled to no files", errs.ErrResource, protoFilePath)
	}

	md := files[0].Messages().ByName(protoreflect.Name(messageType))
	if md == nil {
		return nil, fmt.Errorf("%w: message type %q not found in %s", errs.ErrResource, messageType, protoFilePath)
	}

	return &protoSchema{descriptor: md}, nil
}

// decode unmarshals a wire-format protobuf payload into a dynamic message
// and flattens its top-level fields into a universal Row. Nested messages,
// repeated fields, and maps are carried as Json: protobuf schemas are
// richer than the universal lattice's structural types, so surreal-sync
// only promotes scalar fields.
func (s *protoSchema) decode(table string, payload []byte, idField string) (types.Row, error) {
	msg := dynamicpb.NewMessage(s.descriptor)
	if err := proto.Unmarshal(payload, msg); err != nil {
		return types.Row{}, fmt.Errorf("%w: unmarshal protobuf payload: %v", errs.ErrProtocol, err)
	}

	columns := make(map[string]types.TypedValue, s.descriptor.Fields().Len())
	fields := s.descriptor.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		val := msg.Get(fd)
		tv, err := protoFieldToTyped(fd, val)
		if err != nil {
			return types.Row{}, err
		}
		columns[string(fd.Name())] = tv
	}

	pk := []string{idField}
	if idField == "" {
		pk = nil
	}
	return types.Row{Table: table, PrimaryKey: pk, Columns: columns}, nil
}

func protoFieldToTyped(fd protoreflect.FieldDescriptor, val protoreflect.Value) (types.TypedValue, error) {
	if fd.IsList() || fd.IsMap() || fd.Kind() == protoreflect.MessageKind || fd.Kind() == protoreflect.GroupKind {
		b, err := protojson.Marshal(wrapSingularMessage(fd, val))
		if err != nil {
			return types.TypedValue{}, fmt.Errorf("%w: marshal field %s to json: %v", errs.ErrSchemaMismatch, fd.Name(), err)
		}
		var wrapper map[string]any
		if err := json.Unmarshal(b, &wrapper); err != nil {
			return types.TypedValue{}, fmt.Errorf("%w: decode field %s json: %v", errs.ErrSchemaMismatch, fd.Name(), err)
		}
		return types.JSON(wrapper[string(fd.JSONName())]), nil
	}

	switch fd.Kind() {
	case protoreflect.BoolKind:
		return types.Bool(val.Bool()), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return types.Int(32, val.Int())
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return types.Int(64, val.Int())
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return types.Int(64, int64(val.Uint()))
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return types.Int(64, int64(val.Uint()))
	case protoreflect.FloatKind:
		return types.Float(32, float64(val.Float()))
	case protoreflect.DoubleKind:
		return types.Float(64, val.Float())
	case protoreflect.StringKind:
		return types.Text(val.String()), nil
	case protoreflect.BytesKind:
		return types.Bytes(val.Bytes()), nil
	case protoreflect.EnumKind:
		enumVal := fd.Enum().Values().ByNumber(val.Enum())
		if enumVal == nil {
			return types.Text(fmt.Sprintf("%d", val.Enum())), nil
		}
		return types.Text(string(enumVal.Name())), nil
	default:
		return types.TypedValue{}, fmt.Errorf("%w: unmappable protobuf field kind %s", errs.ErrSchemaMismatch, fd.Kind())
	}
}

// wrapSingularMessage builds a throwaway single-field message so a nested
// message/list/map field can be marshaled to JSON on its own via
// protojson, without protojson needing the owning message's other fields.
func wrapSingularMessage(fd protoreflect.FieldDescriptor, val protoreflect.Value) proto.Message {
	parent := fd.ContainingMessage()
	msg := dynamicpb.NewMessage(parent)
	msg.Set(fd, val)
	return msg
}
