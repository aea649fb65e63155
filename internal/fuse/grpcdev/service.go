package grpcdev

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "asyncfuse.grpcdev.Device"

// DeviceServer is the server API for the Device service.
type DeviceServer interface {
	// Frames exchanges frames with a single client until either side closes
	// the stream.
	Frames(Device_FramesServer) error
}

// RegisterDeviceServer registers srv with s.
func RegisterDeviceServer(s grpc.ServiceRegistrar, srv DeviceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DeviceServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Frames",
		Handler:       framesHandler,
		ServerStreams: true,
		ClientStreams: true,
	}},
}

func framesHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(DeviceServer).Frames(&deviceFramesServer{stream})
}

// Device_FramesServer is the server side of a Frames stream.
type Device_FramesServer interface {
	Send(*Frame) error
	Recv() (*Frame, error)
	grpc.ServerStream
}

type deviceFramesServer struct{ grpc.ServerStream }

func (x *deviceFramesServer) Send(f *Frame) error { return x.ServerStream.SendMsg(f) }

func (x *deviceFramesServer) Recv() (*Frame, error) {
	f := new(Frame)
	if err := x.ServerStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}

// DeviceClient is the client API for the Device service.
type DeviceClient interface {
	Frames(ctx context.Context, opts ...grpc.CallOption) (Device_FramesClient, error)
}

// NewDeviceClient creates a DeviceClient from cc. Frames are always encoded
// with msgpack.
func NewDeviceClient(cc grpc.ClientConnInterface) DeviceClient {
	return &deviceClient{cc: cc}
}

type deviceClient struct{ cc grpc.ClientConnInterface }

func (c *deviceClient) Frames(ctx context.Context, opts ...grpc.CallOption) (Device_FramesClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], "/"+serviceName+"/Frames", opts...)
	if err != nil {
		return nil, err
	}
	return &deviceFramesClient{stream}, nil
}

// Device_FramesClient is the client side of a Frames stream.
type Device_FramesClient interface {
	Send(*Frame) error
	Recv() (*Frame, error)
	grpc.ClientStream
}

type deviceFramesClient struct{ grpc.ClientStream }

func (x *deviceFramesClient) Send(f *Frame) error { return x.ClientStream.SendMsg(f) }

func (x *deviceFramesClient) Recv() (*Frame, error) {
	f := new(Frame)
	if err := x.ClientStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}
