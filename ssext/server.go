// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"context"
	"net"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service the engine exposes.
const ServiceName = "ssext.Connector"

// connectorService is the method set the service descriptor binds to.
type connectorService interface {
	GetCapabilities(ctx context.Context, _ *Empty) (*Capabilities, error)
	ExecuteFunction(stream BundleStream) error
	EvaluateScript(stream BundleStream) error
}

// serverBundleStream adapts a raw gRPC server stream to BundleStream.
// Recv decodes each inbound message lazily so corrupt bundles surface
// inside the session rather than as opaque transport errors.
type serverBundleStream struct {
	grpc.ServerStream
}

func (s serverBundleStream) Recv() (*BundledRows, error) {
	b := new(BundledRows)
	if err := s.RecvMsg(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s serverBundleStream) Send(b *BundledRows) error {
	return s.SendMsg(b)
}

func capabilitiesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(connectorService).GetCapabilities(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/GetCapabilities",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(connectorService).GetCapabilities(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func executeFunctionHandler(srv any, stream grpc.ServerStream) error {
	return srv.(connectorService).ExecuteFunction(serverBundleStream{stream})
}

func evaluateScriptHandler(srv any, stream grpc.ServerStream) error {
	return srv.(connectorService).EvaluateScript(serverBundleStream{stream})
}

// serviceDesc describes the Connector service without generated stubs.
// The wire shapes are fixed by the protocol, so the descriptor is
// written out by hand and the codec does the rest.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*connectorService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetCapabilities",
			Handler:    capabilitiesHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ExecuteFunction",
			Handler:       executeFunctionHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "EvaluateScript",
			Handler:       evaluateScriptHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

// Server binds a Registry to the three protocol operations. It is the
// top-level entry point: build a registry, register functions, then
// hand the server to a grpc.Server via RegisterWith or Serve.
type Server struct {
	reg  *Registry
	disp *Dispatcher
	eval *Evaluator
	opts options
}

// NewServer creates a server over the given registry.
func NewServer(reg *Registry, opt ...Option) *Server {
	o := buildOptions(opt)
	return &Server{
		reg:  reg,
		disp: NewDispatcher(reg, opt...),
		eval: NewEvaluator(reg, opt...),
		opts: o,
	}
}

// GetCapabilities returns the plugin's capability descriptor. The
// first call freezes the registry.
func (s *Server) GetCapabilities(ctx context.Context, _ *Empty) (*Capabilities, error) {
	info := DispatchInfo{
		CallKind: DispatchCapabilities,
		PluginID: s.reg.PluginID(),
	}
	ctx, token, active := hookStart(s.opts.hook, ctx, info)
	caps := s.reg.Capabilities()
	hookEnd(s.opts.hook, ctx, token, active, info, &CallStatistics{}, nil)
	return caps, nil
}

// ExecuteFunction serves one function-execution stream.
func (s *Server) ExecuteFunction(stream BundleStream) error {
	return s.disp.ExecuteFunction(stream)
}

// EvaluateScript serves one script-evaluation stream.
func (s *Server) EvaluateScript(stream BundleStream) error {
	return s.eval.EvaluateScript(stream)
}

// RegisterWith registers the Connector service on an existing
// grpc.Server. The server must have been built with the ssext codec;
// use NewGRPCServer unless you are composing services.
func (s *Server) RegisterWith(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// NewGRPCServer builds a grpc.Server preconfigured with the wire codec
// and registers the Connector service on it.
func (s *Server) NewGRPCServer(grpcOpts ...grpc.ServerOption) *grpc.Server {
	grpcOpts = append(grpcOpts, grpc.ForceServerCodec(wireCodec{}))
	gs := grpc.NewServer(grpcOpts...)
	s.RegisterWith(gs)
	return gs
}

// Serve listens on lis and blocks serving the Connector service until
// the listener fails or the returned grpc.Server is stopped elsewhere.
func (s *Server) Serve(lis net.Listener, grpcOpts ...grpc.ServerOption) error {
	gs := s.NewGRPCServer(grpcOpts...)
	s.opts.logger.Info("serving", "service", ServiceName, "addr", lis.Addr().String(), "plugin", s.reg.PluginID())
	return gs.Serve(lis)
}
