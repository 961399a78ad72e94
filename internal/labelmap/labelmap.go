// Package labelmap loads TensorFlow Object Detection label maps.
//
// A label map is a text-format StringIntLabelMap message:
//
//	item {
//	  id: 1
//	  name: 'plate'
//	}
//	item {
//	  id: 2
//	  name: 'A'
//	  display_name: 'A'
//	}
//
// Parse converts it into a detection.CategoryIndex keyed by class id.
package labelmap

import (
	"fmt"
	"os"
	"sync"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/ironsheep/plate-text-mcp/internal/detection"
)

const protoPackage = "object_detection.protos"

// The descriptor covers the subset of string_int_label_map.proto used here.
// Other fields (keypoints, frequency, ...) are discarded while parsing.
var (
	descOnce    sync.Once
	labelMapMsg protoreflect.MessageDescriptor
	descErr     error
)

func optionalField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

func buildDescriptor() (protoreflect.MessageDescriptor, error) {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("object_detection/protos/string_int_label_map.proto"),
		Package: proto.String(protoPackage),
		Syntax:  proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("StringIntLabelMapItem"),
				Field: []*descriptorpb.FieldDescriptorProto{
					optionalField("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					optionalField("id", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					optionalField("display_name", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
			{
				Name: proto.String("StringIntLabelMap"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{
						Name:     proto.String("item"),
						JsonName: proto.String("item"),
						Number:   proto.Int32(1),
						Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
						Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
						TypeName: proto.String("." + protoPackage + ".StringIntLabelMapItem"),
					},
				},
			},
		},
	}

	fd, err := protodesc.NewFile(fdp, new(protoregistry.Files))
	if err != nil {
		return nil, fmt.Errorf("failed to build label map descriptor: %w", err)
	}
	return fd.Messages().ByName("StringIntLabelMap"), nil
}

func descriptor() (protoreflect.MessageDescriptor, error) {
	descOnce.Do(func() {
		labelMapMsg, descErr = buildDescriptor()
	})
	return labelMapMsg, descErr
}

// Item is one entry of a label map.
type Item struct {
	ID          int
	Name        string
	DisplayName string
	HasDisplay  bool
}

// ParseItems decodes a text-format label map into its items, in file order.
//
// Returns an error if the text is malformed or an item has an invalid id:
// ids must be non-negative and id 0 is reserved for "background".
func ParseItems(data []byte) ([]Item, error) {
	md, err := descriptor()
	if err != nil {
		return nil, err
	}

	msg := dynamicpb.NewMessage(md)
	opts := prototext.UnmarshalOptions{DiscardUnknown: true}
	if err := opts.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to parse label map: %w", err)
	}

	itemField := md.Fields().ByName("item")
	itemDesc := itemField.Message()
	nameField := itemDesc.Fields().ByName("name")
	idField := itemDesc.Fields().ByName("id")
	displayField := itemDesc.Fields().ByName("display_name")

	list := msg.Get(itemField).List()
	items := make([]Item, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		m := list.Get(i).Message()
		item := Item{
			ID:         int(m.Get(idField).Int()),
			Name:       m.Get(nameField).String(),
			HasDisplay: m.Has(displayField),
		}
		if item.HasDisplay {
			item.DisplayName = m.Get(displayField).String()
		}

		if item.ID < 0 {
			return nil, fmt.Errorf("label map item %d: id %d must be >= 0", i, item.ID)
		}
		if item.ID == 0 && item.Name != "background" && item.DisplayName != "background" {
			return nil, fmt.Errorf("label map item %d: id 0 is reserved for background, got %q", i, item.Name)
		}
		items = append(items, item)
	}

	return items, nil
}

// Categories converts label map items into a category index.
//
// Items whose id falls outside (0, maxNumClasses] are skipped and the first
// item wins when an id repeats. When useDisplayName is set, an item's
// display_name replaces its name. A label map with no items yields an empty
// index.
func Categories(items []Item, maxNumClasses int, useDisplayName bool) detection.CategoryIndex {
	idx := make(detection.CategoryIndex)

	for _, item := range items {
		if item.ID <= 0 || item.ID > maxNumClasses {
			continue
		}
		if _, seen := idx[item.ID]; seen {
			continue
		}
		name := item.Name
		if useDisplayName && item.HasDisplay {
			name = item.DisplayName
		}
		idx[item.ID] = detection.Category{ID: item.ID, Name: name}
	}

	return idx
}

// Parse decodes a text-format label map into a category index.
func Parse(data []byte, maxNumClasses int, useDisplayName bool) (detection.CategoryIndex, error) {
	if maxNumClasses <= 0 {
		return nil, fmt.Errorf("max number of classes must be positive, got %d", maxNumClasses)
	}
	items, err := ParseItems(data)
	if err != nil {
		return nil, err
	}
	return Categories(items, maxNumClasses, useDisplayName), nil
}

// Load reads and parses a label map file.
func Load(path string, maxNumClasses int, useDisplayName bool) (detection.CategoryIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read label map: %w", err)
	}
	idx, err := Parse(data, maxNumClasses, useDisplayName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx, nil
}
