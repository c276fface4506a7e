// Command orlo-deployer installs packages and reports each step to an
// Orlo orchestrator.
package main

func main() {
	Execute()
}
