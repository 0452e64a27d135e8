package acceptance_test

import (
	"os/exec"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("kernel status", func() {
	var tmpDir, repoDir string

	BeforeEach(func() {
		tmpDir, repoDir = setupTestRepo("kernel-status-*")
	})

	AfterEach(func() {
		cleanupTestRepo(repoDir, tmpDir)
	})

	Context("before --init", func() {
		It("reports the plan branch as not initialized", func() {
			cmd := exec.Command(binaryPath, "status", "--repo", repoDir)
			output, err := cmd.CombinedOutput()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("not initialized"))
		})
	})

	Context("after --init, with a green master and no spec yet", func() {
		BeforeEach(func() {
			initCmd := exec.Command(binaryPath, "--init", "--repo", repoDir)
			out, err := initCmd.CombinedOutput()
			Expect(err).NotTo(HaveOccurred(), "init failed: %s", string(out))
		})

		It("shows the spec as waiting, zero areas/tickets, and a green master", func() {
			cmd := exec.Command(binaryPath, "status", "--repo", repoDir)
			output, err := cmd.CombinedOutput()
			Expect(err).NotTo(HaveOccurred())
			out := string(output)
			Expect(out).To(ContainSubstring("spec:        WAITING"))
			Expect(out).To(ContainSubstring("areas:       0"))
			Expect(out).To(ContainSubstring("tickets:     0 open, 0 in-progress, 0 done"))
			Expect(out).To(ContainSubstring("merge queue: 0 pending"))
			Expect(out).To(ContainSubstring("master:      green"))
		})
	})

	Context("with a failing master test target", func() {
		BeforeEach(func() {
			initCmd := exec.Command(binaryPath, "--init", "--repo", repoDir)
			Expect(initCmd.Run()).To(Succeed())
			writeFile(repoDir+"/Makefile", "test:\n\t@echo FAIL && exit 1\n")
			runGit(repoDir, "add", "-A")
			runGit(repoDir, "commit", "-q", "-m", "break the build")
		})

		It("reports master as RED", func() {
			cmd := exec.Command(binaryPath, "status", "--repo", repoDir)
			output, err := cmd.CombinedOutput()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("master:      RED"))
		})
	})
})
