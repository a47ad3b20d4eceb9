package packetio_test

import (
	"fmt"
	"io"
	"os"

	"github.com/jacoelho/packetio"
)

func ExampleChannel() {
	ch := packetio.NewChannel(true)

	go func() {
		defer ch.Close()
		for i := range 5 {
			fmt.Fprintf(ch, "message %d\n", i)
		}
	}()

	_, _ = io.Copy(os.Stdout, ch)
	// Output:
	// message 0
	// message 1
	// message 2
	// message 3
	// message 4
}

func ExampleBuilder() {
	b := packetio.NewBuilder(nil)
	b.WriteInt32(42)
	_, _ = b.WriteString("héllo")

	p := b.Build()
	defer p.Release()

	n, _ := p.ReadInt32()
	s, _ := p.ReadString()
	fmt.Println(n, s)
	// Output:
	// 42 héllo
}
