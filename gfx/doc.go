// Package gfx is a backend-agnostic graphics API. Client code creates
// buffers, textures, pipelines and resource sets through a GraphicsDevice,
// records drawing into a CommandList, and submits it; the device replays the
// recording against whichever Backend it was opened with.
//
// All device objects are reference counted. The creator holds the first
// reference; command lists, resource sets, framebuffers and render passes
// retain what they refer to, so an object is destroyed only when its last
// holder lets go.
package gfx
