package acceptance_test

import (
	"os/exec"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("kernel --help", func() {
	It("exits with code 0", func() {
		cmd := exec.Command(binaryPath, "--help")
		Expect(cmd.Run()).To(Succeed())
	})

	It("describes the orchestrator", func() {
		cmd := exec.Command(binaryPath, "--help")
		output, err := cmd.CombinedOutput()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(output)).To(ContainSubstring("git-native agent orchestrator"))
	})

	It("lists the subcommands", func() {
		cmd := exec.Command(binaryPath, "--help")
		output, err := cmd.CombinedOutput()
		Expect(err).NotTo(HaveOccurred())
		out := string(output)
		Expect(out).To(ContainSubstring("run"))
		Expect(out).To(ContainSubstring("status"))
		Expect(out).To(ContainSubstring("plan"))
		Expect(out).To(ContainSubstring("worktrees"))
	})
})

var _ = Describe("kernel --version", func() {
	It("prints a version string", func() {
		cmd := exec.Command(binaryPath, "--version")
		output, err := cmd.CombinedOutput()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(output)).To(ContainSubstring("kernel version"))
	})
})
