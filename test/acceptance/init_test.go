package acceptance_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("kernel --init", func() {
	var tmpDir, repoDir string

	BeforeEach(func() {
		tmpDir, repoDir = setupTestRepo("kernel-init-*")
	})

	AfterEach(func() {
		cleanupTestRepo(repoDir, tmpDir)
	})

	It("creates the kernel/plan orphan branch with a placeholder spec", func() {
		cmd := exec.Command(binaryPath, "--init", "--repo", repoDir)
		output, err := cmd.CombinedOutput()
		Expect(err).NotTo(HaveOccurred(), "init failed: %s", string(output))

		branches := runGitOutput(repoDir, "branch", "--list", "kernel/plan")
		Expect(branches).To(ContainSubstring("kernel/plan"))

		spec := runGitOutput(repoDir, "show", "kernel/plan:spec.md")
		Expect(spec).To(ContainSubstring("no spec written yet"))
	})

	It("is idempotent when run twice", func() {
		cmd1 := exec.Command(binaryPath, "--init", "--repo", repoDir)
		Expect(cmd1.Run()).To(Succeed())

		head1 := strings.TrimSpace(runGitOutput(repoDir, "rev-parse", "kernel/plan"))

		cmd2 := exec.Command(binaryPath, "--init", "--repo", repoDir)
		output, err := cmd2.CombinedOutput()
		Expect(err).NotTo(HaveOccurred(), "second init failed: %s", string(output))

		head2 := strings.TrimSpace(runGitOutput(repoDir, "rev-parse", "kernel/plan"))
		Expect(head2).To(Equal(head1), "a second --init should not add a commit")
	})

	It("leaves master untouched", func() {
		head := strings.TrimSpace(runGitOutput(repoDir, "rev-parse", "master"))

		cmd := exec.Command(binaryPath, "--init", "--repo", repoDir)
		Expect(cmd.Run()).To(Succeed())

		Expect(strings.TrimSpace(runGitOutput(repoDir, "rev-parse", "master"))).To(Equal(head))
		_, err := os.Stat(filepath.Join(repoDir, "spec.md"))
		Expect(os.IsNotExist(err)).To(BeTrue(), "spec.md must live only on kernel/plan, not checked out on master")
	})
})
