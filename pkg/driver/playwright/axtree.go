package playwright

// axTreeScript builds an accessibility-style tree of the current document.
//
// Targetable elements get a data-bb-ref attribute holding a document-local
// reference ("e1", "e2", ...). The counter lives on the window so references
// keep growing across snapshots of the same document and an element keeps
// its reference once assigned. Embedded frames are reported as "iframe" nodes
// with frame set; their content is captured separately.
const axTreeScript = `() => {
  const ATTR = 'data-bb-ref';
  window.__bbRefSeq = window.__bbRefSeq || 0;

  const targetable = new Set([
    'link', 'button', 'combobox', 'listbox', 'textbox', 'searchbox', 'checkbox',
    'radio', 'slider', 'option', 'iframe', 'tab', 'menuitem', 'switch',
  ]);
  const leaves = new Set([
    'button', 'link', 'heading', 'textbox', 'searchbox', 'checkbox', 'radio',
    'slider', 'img', 'iframe', 'option',
  ]);
  const named = new Set([
    'link', 'button', 'heading', 'option', 'listitem', 'cell', 'columnheader',
    'tab', 'menuitem',
  ]);

  const clean = (t) => (t || '').replace(/\s+/g, ' ').trim().slice(0, 200);

  const refFor = (el) => {
    let ref = el.getAttribute(ATTR);
    if (!ref) {
      ref = 'e' + (++window.__bbRefSeq);
      el.setAttribute(ATTR, ref);
    }
    return ref;
  };

  const implicitRole = (el) => {
    const tag = el.tagName.toLowerCase();
    switch (tag) {
      case 'a': return el.hasAttribute('href') ? 'link' : '';
      case 'button': case 'summary': return 'button';
      case 'select': return el.multiple ? 'listbox' : 'combobox';
      case 'textarea': return 'textbox';
      case 'img': return 'img';
      case 'iframe': case 'frame': return 'iframe';
      case 'h1': case 'h2': case 'h3': case 'h4': case 'h5': case 'h6': return 'heading';
      case 'ul': case 'ol': return 'list';
      case 'li': return 'listitem';
      case 'nav': return 'navigation';
      case 'main': return 'main';
      case 'header': return 'banner';
      case 'footer': return 'contentinfo';
      case 'form': return 'form';
      case 'dialog': return 'dialog';
      case 'table': return 'table';
      case 'tr': return 'row';
      case 'td': return 'cell';
      case 'th': return 'columnheader';
      case 'option': return 'option';
      case 'input': {
        const type = (el.getAttribute('type') || 'text').toLowerCase();
        switch (type) {
          case 'hidden': return '';
          case 'checkbox': return 'checkbox';
          case 'radio': return 'radio';
          case 'range': return 'slider';
          case 'search': return 'searchbox';
          case 'button': case 'submit': case 'reset': case 'image': return 'button';
          default: return 'textbox';
        }
      }
    }
    return '';
  };

  const hidden = (el) => {
    if (el.getAttribute('aria-hidden') === 'true') return true;
    const style = window.getComputedStyle(el);
    return style.display === 'none' || style.visibility === 'hidden';
  };

  const accessibleName = (el, role) => {
    const label = el.getAttribute('aria-label');
    if (label) return clean(label);
    const labelledBy = el.getAttribute('aria-labelledby');
    if (labelledBy) {
      const text = labelledBy.split(/\s+/)
        .map((id) => document.getElementById(id))
        .filter(Boolean)
        .map((n) => n.textContent)
        .join(' ');
      if (clean(text)) return clean(text);
    }
    if (el.id && el.labels && el.labels.length) {
      return clean(Array.from(el.labels).map((l) => l.textContent).join(' '));
    }
    if (role === 'img') return clean(el.getAttribute('alt'));
    if (role === 'iframe') return clean(el.getAttribute('title') || el.getAttribute('name'));
    if (role === 'textbox' || role === 'searchbox' || role === 'combobox') {
      return clean(el.getAttribute('placeholder') || el.getAttribute('title'));
    }
    if (named.has(role)) {
      if (el.tagName.toLowerCase() === 'input') return clean(el.value);
      return clean(el.innerText || el.getAttribute('title'));
    }
    return clean(el.getAttribute('title'));
  };

  const walk = (node) => {
    if (node.nodeType === Node.TEXT_NODE) {
      const text = clean(node.textContent);
      return text ? [{ role: 'text', name: text }] : [];
    }
    if (node.nodeType !== Node.ELEMENT_NODE) return [];

    const tag = node.tagName.toLowerCase();
    if (['script', 'style', 'noscript', 'template', 'head', 'svg'].includes(tag)) return [];
    if (hidden(node)) return [];

    const role = node.getAttribute('role') || implicitRole(node);
    const children = [];
    if (!leaves.has(role)) {
      for (const child of node.childNodes) children.push(...walk(child));
    }
    if (!role) return children;

    const out = { role };
    const name = accessibleName(node, role);
    if (name) out.name = name;
    if (role === 'heading') {
      out.level = Number(tag.slice(1)) || Number(node.getAttribute('aria-level')) || 0;
    }
    if (role === 'checkbox' || role === 'radio' || role === 'switch') {
      out.checked = !!node.checked;
    }
    if (['textbox', 'searchbox', 'combobox', 'slider'].includes(role) && node.value) {
      out.value = clean(String(node.value));
    }
    if (node.disabled) out.disabled = true;
    if (targetable.has(role) || node.hasAttribute('onclick') || node.hasAttribute('tabindex')) {
      out.ref = refFor(node);
    }
    if (role === 'iframe') out.frame = true;
    if (children.length) out.children = children;
    return [out];
  };

  const root = {
    role: 'document',
    name: clean(document.title),
    children: walk(document.body || document.documentElement),
  };
  return JSON.stringify(root);
}`
