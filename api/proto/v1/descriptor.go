// Package pb carries the Seldon prediction schema for the gRPC front end.
//
// The file descriptor is assembled from descriptorpb at init and registered
// in protoregistry.GlobalFiles, so reflection and protojson see it exactly
// as if it had been generated from prediction.proto. Messages are
// dynamicpb values of SeldonMessage.
package pb

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	_ "google.golang.org/protobuf/types/known/structpb"
)

const (
	FileName    = "prediction.proto"
	PackageName = "seldon.protos"
)

var (
	fileDesc          protoreflect.FileDescriptor
	seldonMessageDesc protoreflect.MessageDescriptor
)

func init() {
	fd, err := protodesc.NewFile(predictionFile(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("pb: build %s: %v", FileName, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("pb: register %s: %v", FileName, err))
	}
	fileDesc = fd
	seldonMessageDesc = fd.Messages().ByName("SeldonMessage")
}

// File returns the prediction.proto descriptor.
func File() protoreflect.FileDescriptor { return fileDesc }

// SeldonMessageDescriptor returns the descriptor of seldon.protos.SeldonMessage.
func SeldonMessageDescriptor() protoreflect.MessageDescriptor { return seldonMessageDesc }

// NewSeldonMessage returns an empty SeldonMessage.
func NewSeldonMessage() *dynamicpb.Message { return dynamicpb.NewMessage(seldonMessageDesc) }

/*──────── descriptor assembly ───────*/

type (
	fieldType  = descriptorpb.FieldDescriptorProto_Type
	fieldLabel = descriptorpb.FieldDescriptorProto_Label
)

const (
	optional = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	repeated = descriptorpb.FieldDescriptorProto_LABEL_REPEATED

	tString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	tBytes   = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	tInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
	tDouble  = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	tFloat   = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
	tMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	tEnum    = descriptorpb.FieldDescriptorProto_TYPE_ENUM
)

func qualified(name string) string { return "." + PackageName + "." + name }

func scalar(name string, num int32, typ fieldType, label fieldLabel) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Type:   typ.Enum(),
		Label:  label.Enum(),
	}
}

func typed(name string, num int32, typ fieldType, label fieldLabel, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, num, typ, label)
	f.TypeName = proto.String(typeName)
	return f
}

func inOneof(f *descriptorpb.FieldDescriptorProto, idx int32) *descriptorpb.FieldDescriptorProto {
	f.OneofIndex = proto.Int32(idx)
	return f
}

func mapEntry(name string, value *descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name:    proto.String(name),
		Field:   []*descriptorpb.FieldDescriptorProto{scalar("key", 1, tString, optional), value},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}
}

func enum(name string, values ...string) *descriptorpb.EnumDescriptorProto {
	e := &descriptorpb.EnumDescriptorProto{Name: proto.String(name)}
	for i, v := range values {
		e.Value = append(e.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v),
			Number: proto.Int32(int32(i)),
		})
	}
	return e
}

func predictionFile() *descriptorpb.FileDescriptorProto {
	seldonMessage := &descriptorpb.DescriptorProto{
		Name: proto.String("SeldonMessage"),
		Field: []*descriptorpb.FieldDescriptorProto{
			typed("status", 1, tMessage, optional, qualified("Status")),
			typed("meta", 2, tMessage, optional, qualified("Meta")),
			inOneof(typed("data", 3, tMessage, optional, qualified("DefaultData")), 0),
			inOneof(scalar("binData", 4, tBytes, optional), 0),
			inOneof(scalar("strData", 5, tString, optional), 0),
		},
		OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("data_oneof")}},
	}

	defaultData := &descriptorpb.DescriptorProto{
		Name: proto.String("DefaultData"),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalar("names", 1, tString, repeated),
			inOneof(typed("tensor", 2, tMessage, optional, qualified("Tensor")), 0),
			inOneof(typed("ndarray", 3, tMessage, optional, ".google.protobuf.ListValue"), 0),
		},
		OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("data_oneof")}},
	}

	tensor := &descriptorpb.DescriptorProto{
		Name: proto.String("Tensor"),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalar("shape", 1, tInt32, repeated),
			scalar("values", 2, tDouble, repeated),
		},
	}

	meta := &descriptorpb.DescriptorProto{
		Name: proto.String("Meta"),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalar("puid", 1, tString, optional),
			typed("tags", 2, tMessage, repeated, qualified("Meta.TagsEntry")),
			typed("routing", 3, tMessage, repeated, qualified("Meta.RoutingEntry")),
			typed("requestPath", 4, tMessage, repeated, qualified("Meta.RequestPathEntry")),
			typed("metrics", 5, tMessage, repeated, qualified("Metric")),
		},
		NestedType: []*descriptorpb.DescriptorProto{
			mapEntry("TagsEntry", typed("value", 2, tMessage, optional, ".google.protobuf.Value")),
			mapEntry("RoutingEntry", scalar("value", 2, tInt32, optional)),
			mapEntry("RequestPathEntry", scalar("value", 2, tString, optional)),
		},
	}

	metric := &descriptorpb.DescriptorProto{
		Name: proto.String("Metric"),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalar("key", 1, tString, optional),
			typed("type", 2, tEnum, optional, qualified("Metric.MetricType")),
			scalar("value", 3, tFloat, optional),
			typed("tags", 4, tMessage, repeated, qualified("Metric.TagsEntry")),
		},
		NestedType: []*descriptorpb.DescriptorProto{
			mapEntry("TagsEntry", scalar("value", 2, tString, optional)),
		},
		EnumType: []*descriptorpb.EnumDescriptorProto{
			enum("MetricType", "COUNTER", "GAUGE", "TIMER"),
		},
	}

	status := &descriptorpb.DescriptorProto{
		Name: proto.String("Status"),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalar("code", 1, tInt32, optional),
			scalar("info", 2, tString, optional),
			scalar("reason", 3, tString, optional),
			typed("status", 4, tEnum, optional, qualified("Status.StatusFlag")),
		},
		EnumType: []*descriptorpb.EnumDescriptorProto{
			enum("StatusFlag", "SUCCESS", "FAILURE"),
		},
	}

	method := func(name string) *descriptorpb.MethodDescriptorProto {
		return &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String(qualified("SeldonMessage")),
			OutputType: proto.String(qualified("SeldonMessage")),
		}
	}

	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(FileName),
		Package:    proto.String(PackageName),
		Dependency: []string{"google/protobuf/struct.proto"},
		Syntax:     proto.String("proto3"),
		Options:    &descriptorpb.FileOptions{GoPackage: proto.String("modelwrap/api/proto/v1;pb")},
		MessageType: []*descriptorpb.DescriptorProto{
			seldonMessage, defaultData, tensor, meta, metric, status,
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String("Transformer"),
			Method: []*descriptorpb.MethodDescriptorProto{method("TransformInput"), method("TransformOutput")},
		}},
	}
}
