// Package engine renders one timeline (or chunk sub-timeline) to an
// encoder sink.
//
// A render walks a fixed sequence of states:
//
//	resources_resolving → clips_transforming → track_compositing →
//	audio_mixing → emitting → done
//
// and moves to failed from any non-terminal state. Each clip is placed on
// the canvas with fill scaling, then run through its artistic style chain,
// its explicit filters and finally its boundary transitions, which only
// touch the leading and trailing transition spans. A transition belongs to
// the clip that declares it; the neighbor is only blended when it declares
// the matching side too.
//
// Frames stream: transition spans are rendered ahead and held, everything
// else is decoded in half-second batches and transformed as compositing
// reaches it. Only the composited chunk is kept whole for the sink. Tracks
// composite in type order (video, text, effect) and audio clips mix
// additively.
//
// Clip-local problems never abort a render: unresolved sources become flat
// color placeholders and failing filters are skipped from the frame that
// failed onward. Both are recorded in the Result. Encoder failures are fatal.
package engine
