package broadcast

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBroadcaster(t *testing.T) {
	Convey("lines reach every sink", t, func() {
		var a, b bytes.Buffer
		bc := New(NewWriterSink(&a))
		bc.Add(NewWriterSink(&b))

		bc.EmitLine("Motor[1]: Connection OK!")
		So(a.String(), ShouldEqual, "Motor[1]: Connection OK!\n")
		So(b.String(), ShouldEqual, a.String())

		Convey("subscribers get lines until they cancel", func() {
			lines, cancel := bc.Subscribe(2)
			bc.EmitLine("one")
			So(<-lines, ShouldEqual, "one")

			cancel()
			bc.EmitLine("two")
			_, open := <-lines
			So(open, ShouldBeFalse)

			// a second cancel is harmless
			cancel()
		})

		Convey("a full subscriber drops lines instead of blocking", func() {
			lines, cancel := bc.Subscribe(1)
			defer cancel()

			bc.EmitLine("kept")
			bc.EmitLine("dropped")
			So(<-lines, ShouldEqual, "kept")
			So(len(lines), ShouldEqual, 0)
		})
	})

	Convey("serial style sinks use CRLF", t, func() {
		var buf bytes.Buffer
		s := NewWriterSink(&buf)
		s.EOL = "\r\n"
		s.EmitLine("Moving...")
		So(buf.String(), ShouldEqual, "Moving...\r\n")
	})
}
