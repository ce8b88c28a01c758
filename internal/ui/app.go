package ui

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/diskly/internal/coordinator"
	"github.com/sadopc/diskly/internal/model"
	"github.com/sadopc/diskly/internal/ops"
	"github.com/sadopc/diskly/internal/ui/components"
	"github.com/sadopc/diskly/internal/ui/style"
)

// AppState represents the application state.
type AppState int

const (
	StateScanning AppState = iota
	StateBrowsing
	StateExporting
)

// Scanner is the part of the scan coordinator the interface drives.
type Scanner interface {
	StartScan(root string) (string, error)
	CancelScan()
}

// scanStartedMsg reports the result of StartScan.
type scanStartedMsg struct {
	ID  string
	Err error
}

// ScanDoneMsg is produced when the current scan delivers its terminal
// notification.
type ScanDoneMsg struct {
	Event coordinator.Event
}

// ExportDoneMsg is sent when export completes.
type ExportDoneMsg struct {
	Path string
	Err  error
}

type tickMsg time.Time

// feed buffers coordinator notifications between the dispatch goroutine and
// the Bubble Tea loop, which polls it on every tick.
type feed struct {
	mu       sync.Mutex
	progress map[string]coordinator.Event
	errors   map[string]int
	done     map[string]coordinator.Event
}

func newFeed() *feed {
	return &feed{
		progress: make(map[string]coordinator.Event),
		errors:   make(map[string]int),
		done:     make(map[string]coordinator.Event),
	}
}

func (f *feed) push(ev coordinator.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch ev.Kind {
	case coordinator.EventDirectoryProgress:
		f.progress[ev.ScanID] = ev
	case coordinator.EventEntryError:
		f.errors[ev.ScanID]++
	case coordinator.EventScanComplete, coordinator.EventScanError:
		f.done[ev.ScanID] = ev
	}
}

func (f *feed) snapshot(id string) (progress coordinator.Event, errs int, done coordinator.Event, finished bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	done, finished = f.done[id]
	return f.progress[id], f.errors[id], done, finished
}

// reset drops everything buffered, including late notifications of
// superseded scans.
func (f *feed) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.progress)
	clear(f.errors)
	clear(f.done)
}

// App is the root Bubble Tea model. It is also the coordinator listener:
// notifications are buffered and picked up on the next tick.
type App struct {
	ScanPath   string
	ExportPath string
	Version    string

	scanner Scanner
	feed    *feed

	state  AppState
	width  int
	height int

	root        model.Node
	total       uint64
	cached      bool
	errCount    int
	hasTree     bool
	navStack    []string
	sortConfig  model.SortConfig
	sortedItems []model.Node

	cursor int
	offset int

	imported bool

	scanID      string
	scanStarted time.Time
	scanStatus  components.ScanStatus

	theme   style.Theme
	keys    KeyMap
	layout  style.Layout
	spinner spinner.Model
	help    help.Model

	statusMsg string
	fatalErr  error
}

// NewApp creates an App that scans scanPath. Call UseScanner before running
// the program.
func NewApp(scanPath string) *App {
	return &App{
		ScanPath:   scanPath,
		feed:       newFeed(),
		state:      StateScanning,
		sortConfig: model.DefaultSort(),
		theme:      style.DefaultTheme(),
		keys:       DefaultKeyMap(),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:       help.New(),
	}
}

// NewImportedApp creates an App browsing a tree loaded from an export.
// Rescanning is unavailable.
func NewImportedApp(source string, root model.Node, total uint64) *App {
	a := NewApp(source)
	a.imported = true
	a.setTree(root, total, false)
	return a
}

// UseScanner sets the coordinator the App drives.
func (a *App) UseScanner(s Scanner) {
	a.scanner = s
}

// OnEvent implements coordinator.Listener.
func (a *App) OnEvent(ev coordinator.Event) {
	a.feed.push(ev)
}

func (a *App) Init() tea.Cmd {
	if a.imported {
		return nil
	}
	return a.beginScan()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.layout = style.NewLayout(msg.Width, msg.Height)
		return a, nil

	case scanStartedMsg:
		if msg.Err != nil {
			return a.scanFailed(msg.Err)
		}
		a.scanID = msg.ID
		return a, nil

	case tickMsg:
		if a.state != StateScanning {
			return a, nil
		}
		if a.scanID != "" {
			progress, errs, done, finished := a.feed.snapshot(a.scanID)
			if finished {
				return a.Update(ScanDoneMsg{Event: done})
			}
			a.scanStatus.Path = progress.Path
			a.scanStatus.Subtree = progress.Node.Size
			a.scanStatus.Items = progress.TotalScanned
			a.scanStatus.Errors = errs
		}
		a.scanStatus.Elapsed = time.Since(a.scanStarted)
		a.scanStatus.Spinner = a.spinner.View()
		return a, a.tickCmd()

	case ScanDoneMsg:
		_, errs, _, _ := a.feed.snapshot(msg.Event.ScanID)
		a.feed.reset()
		a.scanID = ""
		if msg.Event.Kind == coordinator.EventScanError {
			return a.scanFailed(msg.Event.Err)
		}
		a.setTree(msg.Event.Node, msg.Event.TotalScanned, msg.Event.Cached)
		a.errCount = errs
		if msg.Event.Cached {
			a.statusMsg = "unchanged since last scan"
		}
		return a, tea.ClearScreen

	case spinner.TickMsg:
		if a.state != StateScanning {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case ExportDoneMsg:
		a.state = StateBrowsing
		if msg.Err != nil {
			a.statusMsg = fmt.Sprintf("Export failed: %v", msg.Err)
		} else {
			a.statusMsg = fmt.Sprintf("Exported to %s", msg.Path)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

// scanFailed keeps a previous tree on screen when there is one. Without a
// tree a cancelled scan leaves an empty listing and any other failure ends
// the program.
func (a *App) scanFailed(err error) (tea.Model, tea.Cmd) {
	a.scanID = ""
	if errors.Is(err, coordinator.ErrScanCancelled) {
		a.state = StateBrowsing
		a.statusMsg = "Scan cancelled, press r to rescan"
		return a, tea.ClearScreen
	}
	if !a.hasTree {
		a.fatalErr = err
		return a, tea.Quit
	}
	a.state = StateBrowsing
	a.statusMsg = fmt.Sprintf("Rescan failed: %v", err)
	return a, tea.ClearScreen
}

func (a *App) setTree(root model.Node, total uint64, cached bool) {
	a.root = root
	a.total = total
	a.cached = cached
	a.hasTree = true
	a.errCount = 0
	a.navStack = nil
	a.cursor = 0
	a.offset = 0
	a.state = StateBrowsing
	a.refreshSorted()
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.ForceQuit) {
		a.cancelScan()
		return a, tea.Quit
	}

	switch a.state {
	case StateScanning:
		switch {
		case key.Matches(msg, a.keys.Quit):
			a.cancelScan()
			return a, tea.Quit
		case key.Matches(msg, a.keys.Cancel):
			a.cancelScan()
		}
		return a, nil

	case StateBrowsing:
		return a.handleBrowsingKey(msg)
	}

	return a, nil
}

func (a *App) handleBrowsingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.statusMsg = ""
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
		return a, tea.ClearScreen

	case key.Matches(msg, a.keys.Up):
		a.moveCursor(-1)
	case key.Matches(msg, a.keys.Down):
		a.moveCursor(1)
	case key.Matches(msg, a.keys.Enter):
		a.enterDir()
	case key.Matches(msg, a.keys.Back):
		a.goBack()

	case key.Matches(msg, a.keys.SortSize):
		a.toggleSort(model.SortBySize)
	case key.Matches(msg, a.keys.SortName):
		a.toggleSort(model.SortByName)
	case key.Matches(msg, a.keys.SortCount):
		a.toggleSort(model.SortByCount)
	case key.Matches(msg, a.keys.DirsFirst):
		a.sortConfig.DirsFirst = !a.sortConfig.DirsFirst
		a.refreshSorted()

	case key.Matches(msg, a.keys.Export):
		return a, a.exportCmd()

	case key.Matches(msg, a.keys.Rescan):
		if a.imported || a.scanner == nil {
			a.statusMsg = "Rescan is unavailable for imported trees"
			return a, nil
		}
		return a, tea.Batch(tea.ClearScreen, a.beginScan())
	}

	return a, nil
}

func (a *App) beginScan() tea.Cmd {
	a.state = StateScanning
	a.scanID = ""
	a.scanStarted = time.Now()
	a.scanStatus = components.ScanStatus{Root: a.ScanPath}
	return tea.Batch(a.startCmd(), a.tickCmd(), a.spinner.Tick)
}

func (a *App) cancelScan() {
	if a.scanner != nil {
		a.scanner.CancelScan()
	}
}

func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	switch a.state {
	case StateScanning:
		return components.RenderScanProgress(a.theme, a.scanStatus, a.width, a.height)
	case StateBrowsing, StateExporting:
		return a.renderBrowsing()
	}
	return ""
}

func (a *App) renderBrowsing() string {
	helpView := a.help.View(a.keys)
	layout := style.NewLayout(a.width, a.height-strings.Count(helpView, "\n"))

	current := a.currentDir()
	header := components.RenderHeader(a.theme, components.HeaderInfo{
		Version: a.Version,
		Root:    a.root.Path,
		Size:    a.root.Size,
		Items:   a.total,
		Cached:  a.cached,
	}, a.width)
	breadcrumb := components.RenderBreadcrumb(a.theme, a.navStack, a.width)

	tv := &components.TreeView{
		Theme:      a.theme,
		Layout:     layout,
		Items:      a.sortedItems,
		Cursor:     a.cursor,
		Offset:     a.offset,
		ParentSize: current.Size,
	}
	tv.EnsureVisible()
	a.offset = tv.Offset

	statusBar := components.RenderStatusBar(a.theme, components.StatusInfo{
		Entries: len(a.sortedItems),
		DirSize: current.Size,
		Errors:  a.errCount,
		Sort:    a.sortConfig,
		Message: a.statusMsg,
	}, a.width)

	return header + "\n" + breadcrumb + "\n" + tv.Render() + "\n" + statusBar + "\n" + helpView
}

// currentDir resolves the navigation stack against the root. The tree is
// immutable, so the path stays valid until the next scan replaces it.
func (a *App) currentDir() *model.Node {
	if dir := a.root.Find(a.navStack...); dir != nil {
		return dir
	}
	a.navStack = nil
	return &a.root
}

func (a *App) moveCursor(delta int) {
	a.cursor += delta
	if a.cursor >= len(a.sortedItems) {
		a.cursor = len(a.sortedItems) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a *App) enterDir() {
	if a.cursor >= len(a.sortedItems) {
		return
	}
	item := a.sortedItems[a.cursor]
	if !item.IsDir() {
		return
	}
	a.navStack = append(a.navStack, item.Name)
	a.cursor = 0
	a.offset = 0
	a.refreshSorted()
}

func (a *App) goBack() {
	if len(a.navStack) == 0 {
		return
	}
	leaving := a.navStack[len(a.navStack)-1]
	a.navStack = a.navStack[:len(a.navStack)-1]
	a.refreshSorted()

	a.cursor = 0
	for i, item := range a.sortedItems {
		if item.Name == leaving {
			a.cursor = i
			break
		}
	}
	a.offset = 0
}

func (a *App) toggleSort(field model.SortField) {
	if a.sortConfig.Field == field {
		if a.sortConfig.Order == model.SortDesc {
			a.sortConfig.Order = model.SortAsc
		} else {
			a.sortConfig.Order = model.SortDesc
		}
	} else {
		a.sortConfig.Field = field
		a.sortConfig.Order = model.SortDesc
	}
	a.refreshSorted()
}

func (a *App) refreshSorted() {
	a.sortedItems = model.SortForDisplay(a.currentDir().Children, a.sortConfig)
}

func (a *App) startCmd() tea.Cmd {
	s, root := a.scanner, a.ScanPath
	return func() tea.Msg {
		if s == nil {
			return scanStartedMsg{Err: errors.New("no scanner configured")}
		}
		id, err := s.StartScan(root)
		return scanStartedMsg{ID: id, Err: err}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// FatalError returns the error that ended the program, if any.
func (a *App) FatalError() error { return a.fatalErr }

func (a *App) exportCmd() tea.Cmd {
	if !a.hasTree {
		return nil
	}

	exportPath := a.ExportPath
	if exportPath == "" {
		exportPath = "diskly-export.json"
	}

	a.state = StateExporting
	root, total, version := a.root, a.total, a.Version
	return func() tea.Msg {
		err := ops.ExportJSON(root, total, exportPath, version)
		return ExportDoneMsg{Path: exportPath, Err: err}
	}
}
