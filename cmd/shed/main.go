// Command shed runs the SHE HSM command core as a standalone process.
package main

func main() {
	Execute()
}
