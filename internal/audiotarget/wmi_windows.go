//go:build windows

package audiotarget

import (
	"fmt"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// processNameViaWMI resolves an executable name for pid through a
// Win32_Process WMI query, used only as a fallback when gopsutil can't
// open the process (commonly a protected or elevated process). Errors
// are swallowed by the caller: this enrichment is best-effort and never
// blocks target enumeration.
func processNameViaWMI(pid uint32) (string, bool) {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		return "", false
	}
	defer ole.CoUninitialize()

	locatorObj, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return "", false
	}
	defer locatorObj.Release()

	locator, err := locatorObj.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return "", false
	}
	defer locator.Release()

	serviceVar, err := oleutil.CallMethod(locator, "ConnectServer")
	if err != nil {
		return "", false
	}
	service := serviceVar.ToIDispatch()
	defer service.Release()

	query := fmt.Sprintf("SELECT Name FROM Win32_Process WHERE ProcessId = %d", pid)
	resultVar, err := oleutil.CallMethod(service, "ExecQuery", query)
	if err != nil {
		return "", false
	}
	result := resultVar.ToIDispatch()
	defer result.Release()

	countVar, err := oleutil.GetProperty(result, "Count")
	if err != nil || countVar.Value().(int32) == 0 {
		return "", false
	}

	itemVar, err := oleutil.CallMethod(result, "ItemIndex", 0)
	if err != nil {
		return "", false
	}
	item := itemVar.ToIDispatch()
	defer item.Release()

	nameVar, err := oleutil.GetProperty(item, "Name")
	if err != nil {
		return "", false
	}
	name, ok := nameVar.Value().(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
