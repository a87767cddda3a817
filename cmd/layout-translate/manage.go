package main

import (
	"fmt"
	"io"

	ledger "pdf-layout-translator/internal/errors"
	"pdf-layout-translator/internal/results"
)

// printFailed lists the failure ledger
func printFailed(w io.Writer, em *ledger.ErrorManager) {
	records := em.ListErrors()
	if len(records) == 0 {
		fmt.Fprintln(w, "没有失败记录")
		return
	}
	for _, r := range records {
		retry := "可重试"
		if !r.CanRetry {
			retry = "不可重试"
		}
		fmt.Fprintf(w, "%s  [%s] %s (重试 %d 次, %s)\n",
			r.ID, ledger.GetStageDisplayName(r.Stage), r.ErrorMsg, r.RetryCount, retry)
	}
}

// printHistory lists the run history, newest first
func printHistory(w io.Writer, rm *results.ResultManager) error {
	docs, err := rm.ListDocuments()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "历史记录: %s\n", rm.GetBaseDir())
	if len(docs) == 0 {
		fmt.Fprintln(w, "暂无记录")
		return nil
	}
	for _, d := range docs {
		mode := d.TargetLang
		if d.Debug {
			mode += " debug"
		}
		line := fmt.Sprintf("%s  %s [%s] %s  %d/%d 页",
			d.TranslatedAt.Format("2006-01-02 15:04"), d.SourceFileName, mode, d.Status,
			d.Pages-d.PagesFailed, d.Pages)
		if d.OutputPath != "" {
			line += " -> " + d.OutputPath
		}
		if d.ErrorMessage != "" {
			line += " (" + d.ErrorMessage + ")"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// forget drops the history and the ledger entries of the given inputs
func forget(w io.Writer, em *ledger.ErrorManager, rm *results.ResultManager, inputs []string) error {
	for _, in := range inputs {
		if err := em.ClearDocument(in); err != nil {
			return err
		}
		sum, err := results.CalculateFileMD5(in)
		if err != nil {
			fmt.Fprintf(w, "%s: 无法读取，只清除失败记录\n", in)
			continue
		}
		doc, err := rm.FindByMD5(sum)
		if err != nil {
			return err
		}
		if doc == nil {
			fmt.Fprintf(w, "%s: 没有历史记录\n", in)
			continue
		}
		if err := rm.DeleteDocument(doc.ID); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: 已清除\n", in)
	}
	return nil
}
