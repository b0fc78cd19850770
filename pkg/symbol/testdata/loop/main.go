package main

import (
	"fmt"
	"time"
)

func tick(n int) {
	fmt.Println("tick", n)
}

func main() {
	for i := 0; ; i++ {
		tick(i)
		time.Sleep(100 * time.Millisecond)
	}
}
